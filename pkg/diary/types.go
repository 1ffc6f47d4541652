package diary

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the stored form of calendar days.
const DateLayout = "2006-01-02"

// Date is a calendar day. It is stored as "2006-01-02" and reads back RFC 3339
// instants as their UTC day.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads "2006-01-02" or an RFC 3339 instant.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		instant, ierr := time.Parse(time.RFC3339Nano, s)
		if ierr != nil {
			return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
		}
		t = instant.UTC()
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	p, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = p
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// FeedingType is what the child was fed and how.
type FeedingType string

const (
	FeedingBreastLeft  FeedingType = "breastLeft"
	FeedingBreastRight FeedingType = "breastRight"
	FeedingBreastBoth  FeedingType = "breastBoth"
	FeedingFormula     FeedingType = "formula"
	FeedingPumpedMilk  FeedingType = "pumpedMilk"
	FeedingSolidFood   FeedingType = "solidFood"
	FeedingWater       FeedingType = "water"
	FeedingOther       FeedingType = "other"
)

// FeedingTypes lists every accepted feeding type.
var FeedingTypes = []FeedingType{
	FeedingBreastLeft, FeedingBreastRight, FeedingBreastBoth, FeedingFormula,
	FeedingPumpedMilk, FeedingSolidFood, FeedingWater, FeedingOther,
}

// Valid reports whether t is one of FeedingTypes.
func (t FeedingType) Valid() bool {
	for _, v := range FeedingTypes {
		if t == v {
			return true
		}
	}
	return false
}

// IsBreast reports whether the feeding is timed rather than measured.
func (t FeedingType) IsBreast() bool {
	return t == FeedingBreastLeft || t == FeedingBreastRight || t == FeedingBreastBoth
}

// IsBottle reports whether the feeding carries an amount and unit.
func (t FeedingType) IsBottle() bool {
	return t == FeedingFormula || t == FeedingPumpedMilk
}

// Volume units accepted on bottle feedings.
const (
	UnitML = "ml"
	UnitOZ = "oz"
)

const mlPerOunce = 29.5735

// DiaperType describes a diaper change.
type DiaperType string

const (
	DiaperWet   DiaperType = "wet"
	DiaperDirty DiaperType = "dirty"
	DiaperMixed DiaperType = "mixed"
	DiaperDry   DiaperType = "dry"
)

// DiaperTypes lists every accepted diaper type.
var DiaperTypes = []DiaperType{DiaperWet, DiaperDirty, DiaperMixed, DiaperDry}

// Valid reports whether t is one of DiaperTypes.
func (t DiaperType) Valid() bool {
	for _, v := range DiaperTypes {
		if t == v {
			return true
		}
	}
	return false
}

// HealthType is the kind of health entry: a measurement or an event.
type HealthType string

const (
	HealthWeight      HealthType = "weight"
	HealthHeight      HealthType = "height"
	HealthTemperature HealthType = "temperature"
	HealthVaccine     HealthType = "vaccine"
	HealthMedication  HealthType = "medication"
	HealthSymptom     HealthType = "symptom"
	HealthDoctor      HealthType = "doctor"
)

// HealthTypes lists every accepted health type.
var HealthTypes = []HealthType{
	HealthWeight, HealthHeight, HealthTemperature, HealthVaccine,
	HealthMedication, HealthSymptom, HealthDoctor,
}

// Valid reports whether t is one of HealthTypes.
func (t HealthType) Valid() bool {
	for _, v := range HealthTypes {
		if t == v {
			return true
		}
	}
	return false
}

// IsMeasurement reports whether the record carries a numeric value.
func (t HealthType) IsMeasurement() bool {
	return t == HealthWeight || t == HealthHeight || t == HealthTemperature
}

// Mood is an observed mood of the child.
type Mood string

const (
	MoodHappy         Mood = "happy"
	MoodCalm          Mood = "calm"
	MoodTired         Mood = "tired"
	MoodFussy         Mood = "fussy"
	MoodAngry         Mood = "angry"
	MoodScared        Mood = "scared"
	MoodUncomfortable Mood = "uncomfortable"
	MoodCrying        Mood = "crying"
)

// Moods lists every mood; summaries break frequency ties in this order.
var Moods = []Mood{
	MoodHappy, MoodCalm, MoodTired, MoodFussy,
	MoodAngry, MoodScared, MoodUncomfortable, MoodCrying,
}

// Valid reports whether m is one of Moods.
func (m Mood) Valid() bool {
	for _, v := range Moods {
		if m == v {
			return true
		}
	}
	return false
}

// Child is a child whose care is recorded. Every other entry points at one by ChildID.
type Child struct {
	ID        int64  `json:"id,omitempty" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	BirthDate Date   `json:"birthDate" yaml:"birthDate"`
	Gender    string `json:"gender,omitempty" yaml:"gender,omitempty"`
	Notes     string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// FeedingRecord is one feeding. Breast feedings carry a Duration,
// bottle feedings an Amount and Unit.
type FeedingRecord struct {
	ID        int64       `json:"id,omitempty" yaml:"id"`
	ChildID   int64       `json:"childId" yaml:"childId"`
	Timestamp time.Time   `json:"timestamp" yaml:"timestamp"`
	Type      FeedingType `json:"type" yaml:"type"`
	// Duration is in seconds.
	Duration  int      `json:"duration,omitempty" yaml:"duration,omitempty"`
	Amount    float64  `json:"amount,omitempty" yaml:"amount,omitempty"`
	Unit      string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	FoodItems []string `json:"foodItems,omitempty" yaml:"foodItems,omitempty"`
	Notes     string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt string   `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// VolumeML returns the bottle volume in millilitres, 0 for other feedings.
func (f FeedingRecord) VolumeML() float64 {
	if !f.Type.IsBottle() {
		return 0
	}
	if f.Unit == UnitOZ {
		return f.Amount * mlPerOunce
	}
	return f.Amount
}

// SleepRecord is a sleep session. EndTime is nil while the child is asleep.
type SleepRecord struct {
	ID        int64      `json:"id,omitempty" yaml:"id"`
	ChildID   int64      `json:"childId" yaml:"childId"`
	StartTime time.Time  `json:"startTime" yaml:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty" yaml:"endTime,omitempty"`
	Quality   string     `json:"quality,omitempty" yaml:"quality,omitempty"`
	Location  string     `json:"location,omitempty" yaml:"location,omitempty"`
	Notes     string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt string     `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// Open reports whether the child is still asleep.
func (s SleepRecord) Open() bool {
	return s.EndTime == nil
}

// DiaperRecord is one diaper change.
type DiaperRecord struct {
	ID        int64      `json:"id,omitempty" yaml:"id"`
	ChildID   int64      `json:"childId" yaml:"childId"`
	Timestamp time.Time  `json:"timestamp" yaml:"timestamp"`
	Type      DiaperType `json:"type" yaml:"type"`
	Condition string     `json:"condition,omitempty" yaml:"condition,omitempty"`
	Notes     string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt string     `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// HealthRecord is a measurement or health event on a calendar day.
type HealthRecord struct {
	ID          int64      `json:"id,omitempty" yaml:"id"`
	ChildID     int64      `json:"childId" yaml:"childId"`
	Date        Date       `json:"date" yaml:"date"`
	Type        HealthType `json:"type" yaml:"type"`
	Value       float64    `json:"value,omitempty" yaml:"value,omitempty"`
	Unit        string     `json:"unit,omitempty" yaml:"unit,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Notes       string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt   string     `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// MilestoneRecord is a developmental milestone with the age window it is expected in.
type MilestoneRecord struct {
	ID      int64  `json:"id,omitempty" yaml:"id"`
	ChildID int64  `json:"childId" yaml:"childId"`
	Type    string `json:"type" yaml:"type"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	// AchievedDate is nil until the milestone is reached.
	AchievedDate   *Date  `json:"achievedDate,omitempty" yaml:"achievedDate,omitempty"`
	ExpectedAgeMin int    `json:"expectedAgeMin,omitempty" yaml:"expectedAgeMin,omitempty"`
	ExpectedAgeMax int    `json:"expectedAgeMax,omitempty" yaml:"expectedAgeMax,omitempty"`
	Notes          string `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// Achieved reports whether the milestone has an achieved date.
func (m MilestoneRecord) Achieved() bool {
	return m.AchievedDate != nil
}

// MoodRecord is one mood observation.
type MoodRecord struct {
	ID        int64     `json:"id,omitempty" yaml:"id"`
	ChildID   int64     `json:"childId" yaml:"childId"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Mood      Mood      `json:"mood" yaml:"mood"`
	Intensity int       `json:"intensity,omitempty" yaml:"intensity,omitempty"`
	Triggers  []string  `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	Notes     string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt string    `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// InteractionLog records time spent with the child. A non-empty
// ParentReflection makes it a reflection entry.
type InteractionLog struct {
	ID               int64    `json:"id,omitempty" yaml:"id"`
	ChildID          int64    `json:"childId" yaml:"childId"`
	Date             Date     `json:"date" yaml:"date"`
	Activities       []string `json:"activities,omitempty" yaml:"activities,omitempty"`
	Duration         int      `json:"duration,omitempty" yaml:"duration,omitempty"`
	ParentReflection string   `json:"parentReflection,omitempty" yaml:"parentReflection,omitempty"`
	CreatedAt        string   `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// Settings is the application settings singleton.
type Settings struct {
	ID            string `json:"id" yaml:"id"`
	DarkMode      bool   `json:"darkMode" yaml:"darkMode"`
	ActiveChildID int64  `json:"activeChildId,omitempty" yaml:"activeChildId,omitempty"`
	LastSyncDate  string `json:"lastSyncDate,omitempty" yaml:"lastSyncDate,omitempty"`
}
