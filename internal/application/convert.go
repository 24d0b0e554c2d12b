package application

import "github.com/example/volunteer-coordinator/internal/persistence"

func toUser(user persistence.User) User {
	return User{
		ID:            user.ID,
		Email:         user.Email,
		FullName:      user.FullName,
		Role:          Role(user.Role),
		PhoneNumber:   user.PhoneNumber,
		CalendarToken: user.CalendarToken,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

func toAssignment(assignment persistence.ShiftAssignment) ShiftAssignment {
	return ShiftAssignment{
		ID:         assignment.ID,
		SubShiftID: assignment.SubShiftID,
		UserID:     assignment.UserID,
		Status:     AssignmentStatus(assignment.Status),
		CreatedAt:  assignment.CreatedAt,
		UpdatedAt:  assignment.UpdatedAt,
	}
}

func toSwapRequest(swap persistence.SwapRequest) SwapRequest {
	return SwapRequest{
		ID:           swap.ID,
		AssignmentID: swap.AssignmentID,
		RequesterID:  swap.RequesterID,
		Status:       SwapStatus(swap.Status),
		AcceptedByID: swap.AcceptedByID,
		CreatedAt:    swap.CreatedAt,
		UpdatedAt:    swap.UpdatedAt,
	}
}

func toPreference(pref persistence.NotificationPreference) NotificationPreference {
	return NotificationPreference{
		UserID:      pref.UserID,
		Enabled:     pref.Enabled,
		LeadMinutes: pref.LeadMinutes,
		Timezone:    pref.Timezone,
	}
}
