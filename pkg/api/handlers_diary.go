package api

import (
	"bytes"

	"github.com/gofiber/fiber/v2"
	"github.com/unowned-ai/nursery/pkg/diary"
	"github.com/unowned-ai/nursery/pkg/records"
)

func (handler *Handler) GetDailySummary(c *fiber.Ctx) error {
	childID, err := parseChildID(c)
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, err.Error())
	}
	day, err := handler.parseDay(c.Query("day"))
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, err.Error())
	}
	sum, err := handler.diary.DailySummary(c.UserContext(), childID, day)
	if err != nil {
		return handler.fail(c, err)
	}
	return c.JSON(sum)
}

func (handler *Handler) GetNextMilestone(c *fiber.Ctx) error {
	childID, err := parseChildID(c)
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, err.Error())
	}
	next, ok, err := handler.diary.NextMilestone(c.UserContext(), childID)
	if err != nil {
		return handler.fail(c, err)
	}
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(next)
}

// DeleteChild deletes a child; ?policy=cascade also deletes its records.
func (handler *Handler) DeleteChild(c *fiber.Ctx) error {
	childID, err := parseChildID(c)
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, err.Error())
	}
	policy, err := diary.ParseDeletePolicy(c.Query("policy"))
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, err.Error())
	}
	deleted, err := handler.diary.DeleteChild(c.UserContext(), childID, policy)
	if err != nil {
		return handler.fail(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "policy": policy.String(), "recordsDeleted": deleted})
}

func (handler *Handler) ExportBackup(c *fiber.Ctx) error {
	snap, err := handler.store.ExportAll(c.UserContext())
	if err != nil {
		return handler.fail(c, err)
	}
	var buf bytes.Buffer
	if err := records.WriteSnapshot(&buf, snap); err != nil {
		return handler.fail(c, err)
	}
	setExportAttachmentHeaders(c, fiber.MIMEApplicationJSONCharsetUTF8, records.BackupFilename(handler.now()))
	return c.Send(buf.Bytes())
}

func (handler *Handler) ImportBackup(c *fiber.Ctx) error {
	snap, err := records.ReadSnapshot(bytes.NewReader(c.Body()))
	if err != nil {
		return handler.fail(c, err)
	}
	if err := handler.store.ImportAll(c.UserContext(), snap); err != nil {
		return handler.fail(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "collections": len(snap.Collections)})
}

func (handler *Handler) ResetDatabase(c *fiber.Ctx) error {
	if err := handler.store.DeleteAll(c.UserContext()); err != nil {
		return handler.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
