package models

import "time"

// ResourceCategory classifies what kind of thing a resource is.
type ResourceCategory string

const (
	ResourceStaff     ResourceCategory = "staff"
	ResourceEquipment ResourceCategory = "equipment"
	ResourceMaterials ResourceCategory = "materials"
)

// IsValid reports whether c is a supported category.
func (c ResourceCategory) IsValid() bool {
	switch c {
	case ResourceStaff, ResourceEquipment, ResourceMaterials:
		return true
	}
	return false
}

// Resource is a person, piece of equipment or stock that can be booked.
type Resource struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Category    ResourceCategory `json:"category"`
	IsAvailable bool             `json:"is_available"`
	Notes       string           `json:"notes,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ScheduleEntry is a committed [StartTime, EndTime) block for a resource.
type ScheduleEntry struct {
	ID         int64     `json:"id"`
	ResourceID int64     `json:"resource_id"`
	EventID    int64     `json:"event_id"`
	TaskID     *int64    `json:"task_id,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Conflict describes an existing booking that overlaps a requested window.
type Conflict struct {
	ScheduleEntryID   int64     `json:"scheduleEntryId"`
	ResourceID        int64     `json:"resourceId"`
	ResourceName      string    `json:"resourceName"`
	EventID           int64     `json:"eventId"`
	EventName         string    `json:"eventName"`
	TaskID            *int64    `json:"taskId,omitempty"`
	TaskTitle         *string   `json:"taskTitle,omitempty"`
	ExistingStartTime time.Time `json:"existingStartTime"`
	ExistingEndTime   time.Time `json:"existingEndTime"`
}

// AvailabilityEntry is a calendar row for a resource's commitments.
type AvailabilityEntry struct {
	ScheduleEntryID int64     `json:"scheduleEntryId"`
	EventID         int64     `json:"eventId"`
	EventName       string    `json:"eventName"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	TaskTitle       *string   `json:"taskTitle,omitempty"`
}
