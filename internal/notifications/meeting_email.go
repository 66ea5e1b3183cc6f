package notifications

import (
	"fmt"
	"strings"

	"v1tr0-backend/internal/meetings"
)

func meetingConfirmationText(b meetings.Booking, senderName string) string {
	var sb strings.Builder
	name := strings.TrimSpace(b.ClientName)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&sb, "Hello %s,\n\n", name)
	fmt.Fprintf(&sb, "Your meeting is confirmed.\n\n")
	fmt.Fprintf(&sb, "Date: %s\n", b.Date)
	fmt.Fprintf(&sb, "Time: %s (%d minutes)\n", b.Time, b.Duration)
	if b.MeetingType != "" {
		fmt.Fprintf(&sb, "Type: %s\n", b.MeetingType)
	}
	if b.Title != "" {
		fmt.Fprintf(&sb, "Subject: %s\n", b.Title)
	}
	if b.Notes != "" {
		fmt.Fprintf(&sb, "Notes: %s\n", b.Notes)
	}
	fmt.Fprintf(&sb, "Reference: %s\n\n", b.ID)
	fmt.Fprintf(&sb, "Reply to this email if you need to reschedule.\n\n%s\n", senderName)
	return sb.String()
}
