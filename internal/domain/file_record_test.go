package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestOverdue: просрочка — вычисляемое свойство, которое меняется со
// временем без единой записи в базу.
func TestOverdue(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	before := due.Add(-time.Hour)
	after := due.Add(time.Hour)

	tests := []struct {
		name    string
		rec     FileRecord
		now     time.Time
		overdue bool
	}{
		{"no due date", FileRecord{Status: StatusPending}, after, false},
		{"before deadline", FileRecord{Status: StatusPending, DueDate: &due}, before, false},
		{"after deadline pending", FileRecord{Status: StatusPending, DueDate: &due}, after, true},
		{"after deadline in progress", FileRecord{Status: StatusInProgress, DueDate: &due}, after, true},
		{"after deadline done", FileRecord{Status: StatusDone, DueDate: &due}, after, false},
		{"exactly at deadline", FileRecord{Status: StatusPending, DueDate: &due}, due, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.overdue, tt.rec.Overdue(tt.now))
		})
	}

	// Один и тот же объект: до срока не просрочен, после — просрочен.
	rec := FileRecord{Status: StatusPending, DueDate: &due}
	assert.False(t, rec.Overdue(before))
	assert.True(t, rec.Overdue(after))
}

func TestValidTaskStatus(t *testing.T) {
	assert.True(t, ValidTaskStatus(StatusPending))
	assert.True(t, ValidTaskStatus(StatusInProgress))
	assert.True(t, ValidTaskStatus(StatusDone))

	// Служебный статус и произвольные строки не проходят.
	assert.False(t, ValidTaskStatus(StatusSynced))
	assert.False(t, ValidTaskStatus("done"))
	assert.False(t, ValidTaskStatus("Cancelled"))
	assert.False(t, ValidTaskStatus(""))
}

func TestExt(t *testing.T) {
	assert.Equal(t, ".pdf", (&FileRecord{Filename: "Report.PDF"}).Ext())
	assert.Equal(t, ".xlsx", (&FileRecord{Filename: "b.xlsx"}).Ext())
	assert.Equal(t, "", (&FileRecord{Filename: "README"}).Ext())
}
