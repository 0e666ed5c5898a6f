package domain

import (
	"testing"
	"time"
)

func TestRegulatoryFiling_IsOverdue(t *testing.T) {
	deadline := time.Date(2026, 4, 9, 9, 30, 0, 0, time.UTC)
	f := &RegulatoryFiling{Status: FilingStatusReview, Deadline: deadline}

	if f.IsOverdue(deadline.Add(-time.Minute)) {
		t.Error("filing before deadline must not be overdue")
	}
	if !f.IsOverdue(deadline.Add(time.Minute)) {
		t.Error("filing past deadline must be overdue")
	}

	f.Status = FilingStatusFiled
	if f.IsOverdue(deadline.Add(time.Hour)) {
		t.Error("filed filing can never be overdue")
	}

	f.Status = FilingStatusFailed
	if f.IsOverdue(deadline.Add(time.Hour)) {
		t.Error("failed filing is terminal, not overdue")
	}
}

func TestRegulatoryFiling_ReminderBits(t *testing.T) {
	f := &RegulatoryFiling{}

	if f.ReminderSent(ReminderSevenDays) {
		t.Error("no reminder sent yet")
	}

	f.MarkReminderSent(ReminderSevenDays)
	f.MarkReminderSent(ReminderOneDay)

	if !f.ReminderSent(ReminderSevenDays) || !f.ReminderSent(ReminderOneDay) {
		t.Error("marked reminders must read back as sent")
	}
	if f.ReminderSent(ReminderThreeDays) {
		t.Error("unmarked reminder must not read as sent")
	}
}

func TestManualFilingQueueItem_IsOverdue(t *testing.T) {
	deadline := time.Date(2026, 4, 9, 9, 30, 0, 0, time.UTC)
	item := &ManualFilingQueueItem{Status: QueueStatusPending, Deadline: deadline}

	if item.IsOverdue(deadline.Add(-time.Hour)) {
		t.Error("pending item before deadline is not overdue")
	}
	if !item.IsOverdue(deadline.Add(time.Hour)) {
		t.Error("pending item past deadline is overdue")
	}

	for _, s := range []QueueItemStatus{QueueStatusFiled, QueueStatusEscalated, QueueStatusCancelled} {
		item.Status = s
		if item.IsOverdue(deadline.Add(time.Hour)) {
			t.Errorf("terminal item in %s must not be overdue", s)
		}
	}
}
