// Package model defines domain entities shared by the persistence facade and its backends.
package model

import "time"

// Category classifies links and password entries.
type Category string

// Known categories. AI suggestions outside this set fall back to CategoryOther.
const (
	CategoryWork          Category = "Work"
	CategoryPersonal      Category = "Personal"
	CategoryEntertainment Category = "Entertainment"
	CategoryFinance       Category = "Finance"
	CategoryEducation     Category = "Education"
	CategorySocial        Category = "Social"
	CategoryOther         Category = "Other"
)

// Categories lists every valid category, in display order.
func Categories() []Category {
	return []Category{
		CategoryWork, CategoryPersonal, CategoryEntertainment,
		CategoryFinance, CategoryEducation, CategorySocial, CategoryOther,
	}
}

// ValidCategory reports whether c is a member of the known set.
func ValidCategory(c Category) bool {
	for _, v := range Categories() {
		if c == v {
			return true
		}
	}
	return false
}

// PasswordStrength is a coarse client-side strength rating.
type PasswordStrength string

const (
	StrengthWeak   PasswordStrength = "Weak"
	StrengthMedium PasswordStrength = "Medium"
	StrengthStrong PasswordStrength = "Strong"
)

// EventType classifies calendar events.
type EventType string

const (
	EventMeeting  EventType = "Meeting"
	EventBirthday EventType = "Birthday"
	EventDeadline EventType = "Deadline"
	EventReminder EventType = "Reminder"
)

// ChatRole is the author of a chat message.
type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

// User is an account record. Password is plaintext in the local simulation
// and is stripped before a User leaves the authentication boundary.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Name     string `json:"name"`
}

// LinkItem is a saved bookmark.
type LinkItem struct {
	ID        string   `json:"id"`
	UserID    string   `json:"userId"`
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	Category  Category `json:"category"`
	Tags      []string `json:"tags"`
	Clicks    int      `json:"clicks"`
	CreatedAt int64    `json:"createdAt"` // epoch millis
}

// PasswordItem is vault metadata for one credential. The password field
// holds whatever the user entered; the vault does no client-side encryption.
type PasswordItem struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	Site        string           `json:"site"`
	Username    string           `json:"username"`
	Password    string           `json:"password"`
	Category    Category         `json:"category"`
	Strength    PasswordStrength `json:"strength"`
	LastUpdated int64            `json:"lastUpdated"` // epoch millis
}

// CalendarEvent is a dated task or appointment.
type CalendarEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Date      string    `json:"date"` // ISO-8601
	Type      EventType `json:"type"`
	Completed bool      `json:"completed"`
}

// ChatMessage is one assistant transcript entry. It carries no userId of its
// own; ownership comes from the per-user collection key it is stored under.
type ChatMessage struct {
	ID        string   `json:"id"`
	Role      ChatRole `json:"role"`
	Text      string   `json:"text"`
	Timestamp int64    `json:"timestamp"` // epoch millis
}

// UserData bundles one user's full dataset as loaded on sign-in.
type UserData struct {
	Links     []LinkItem
	Passwords []PasswordItem
	Events    []CalendarEvent
}

// Time converts an epoch-millis field to time.Time.
func Time(millis int64) time.Time { return time.UnixMilli(millis) }
