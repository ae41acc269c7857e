package services

import (
	"fmt"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
)

// RoleOf returns userID's role in conv. Participants of rows migrated from the
// participants-only schema are unassigned.
func RoleOf(conv *models.Conversation, userID string) models.Role {
	slot := conv.SlotOf(userID)
	if slot == models.RoleNone {
		return models.RoleNone
	}
	if !conv.RolesAssigned {
		return models.RoleUnassigned
	}
	return slot
}

// ValidatePermission rejects outsiders and, when required is set, participants
// holding the other role. Unassigned participants satisfy any required role.
func ValidatePermission(conv *models.Conversation, userID string, required *models.Role) (models.Role, error) {
	role := RoleOf(conv, userID)
	if role == models.RoleNone {
		return role, fmt.Errorf("%w: user %s is not a participant of conversation %s", ErrPermission, userID, conv.ID)
	}
	if required != nil && role != *required && role != models.RoleUnassigned {
		return role, fmt.Errorf("%w: user %s is %s, %s required", ErrPermission, userID, role, *required)
	}
	return role, nil
}
