package api

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/unowned-ai/nursery/pkg/records"
)

type collectionInfo struct {
	Name    string   `json:"name"`
	Indexes []string `json:"indexes"`
}

func (handler *Handler) ListCollections(c *fiber.Ctx) error {
	out := make([]collectionInfo, 0, len(handler.store.Collections()))
	for _, col := range handler.store.Collections() {
		info := collectionInfo{Name: col.Name, Indexes: make([]string, 0, len(col.Indexes))}
		for _, idx := range col.Indexes {
			info.Indexes = append(info.Indexes, idx.Name)
		}
		out = append(out, info)
	}
	return c.JSON(out)
}

func (handler *Handler) GetAll(c *fiber.Ctx) error {
	recs, err := handler.store.GetAll(c.UserContext(), c.Params("collection"))
	if err != nil {
		return handler.fail(c, err)
	}
	return c.JSON(recs)
}

func parseRecordBody(c *fiber.Ctx) (records.Record, error) {
	var rec records.Record
	if err := json.Unmarshal(c.Body(), &rec); err != nil || rec == nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "request body must be a JSON object")
	}
	return rec, nil
}

func (handler *Handler) AddRecord(c *fiber.Ctx) error {
	rec, err := parseRecordBody(c)
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, err.Error())
	}
	id, err := handler.store.Add(c.UserContext(), c.Params("collection"), rec)
	if err != nil {
		return handler.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (handler *Handler) GetRecord(c *fiber.Ctx) error {
	collection, id := c.Params("collection"), c.Params("id")
	rec, ok, err := handler.store.Get(c.UserContext(), collection, id)
	if err != nil {
		return handler.fail(c, err)
	}
	if !ok {
		return apiError(c, fiber.StatusNotFound, "record not found")
	}
	return c.JSON(rec)
}

// UpdateRecord replaces the record at the path's id; an id in the body is ignored.
func (handler *Handler) UpdateRecord(c *fiber.Ctx) error {
	rec, err := parseRecordBody(c)
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, err.Error())
	}
	rec[records.KeyField] = c.Params("id")
	if err := handler.store.Update(c.UserContext(), c.Params("collection"), rec); err != nil {
		return handler.fail(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (handler *Handler) DeleteRecord(c *fiber.Ctx) error {
	if err := handler.store.Delete(c.UserContext(), c.Params("collection"), c.Params("id")); err != nil {
		return handler.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (handler *Handler) GetByIndex(c *fiber.Ctx) error {
	raw := c.Query("value")
	if strings.TrimSpace(raw) == "" {
		return apiError(c, fiber.StatusBadRequest, "query parameter 'value' is required")
	}
	recs, err := handler.store.GetByIndex(c.UserContext(), c.Params("collection"), c.Params("index"), records.ParseQueryValue(raw))
	if err != nil {
		return handler.fail(c, err)
	}
	return c.JSON(recs)
}

// GetByDateRange serves both range queries: with ?childId= it uses the
// (childId, time) index named in the path.
func (handler *Handler) GetByDateRange(c *fiber.Ctx) error {
	start, end := c.Query("start"), c.Query("end")
	if start == "" || end == "" {
		return apiError(c, fiber.StatusBadRequest, "query parameters 'start' and 'end' are required")
	}
	collection, index := c.Params("collection"), c.Params("index")

	var (
		recs []records.Record
		err  error
	)
	if childID := c.Query("childId"); childID != "" {
		recs, err = handler.store.GetChildRecordsByDateRange(c.UserContext(), collection, index,
			records.ParseQueryValue(childID), records.ParseQueryValue(start), records.ParseQueryValue(end))
	} else {
		recs, err = handler.store.GetByDateRange(c.UserContext(), collection, index,
			records.ParseQueryValue(start), records.ParseQueryValue(end))
	}
	if err != nil {
		return handler.fail(c, err)
	}
	return c.JSON(recs)
}
