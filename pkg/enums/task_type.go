package enums

import "fmt"

// TaskType maps to the task_type_enum enum in Postgres. Each type selects the
// handler that validates events before a completion is recorded.
type TaskType string

const (
	TaskTypeRegister      TaskType = "register"
	TaskTypeInviteSuccess TaskType = "invite_success"
	TaskTypeGameAction    TaskType = "game_action"
	TaskTypeExternalTask  TaskType = "external_task"
)

var validTaskTypes = []TaskType{
	TaskTypeRegister,
	TaskTypeInviteSuccess,
	TaskTypeGameAction,
	TaskTypeExternalTask,
}

// IsValid reports whether the value matches the canonical task type enum.
func (t TaskType) IsValid() bool {
	for _, candidate := range validTaskTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTaskType converts raw input into TaskType.
func ParseTaskType(value string) (TaskType, error) {
	for _, candidate := range validTaskTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid task type %q", value)
}
