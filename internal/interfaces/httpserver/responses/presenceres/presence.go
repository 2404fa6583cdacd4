// Package presenceres contains HTTP response DTOs for presence lookups.
package presenceres

// PresenceResponse reports whether a user has a live connection on this instance.
type PresenceResponse struct {
	UserID   string `json:"user_id"`
	Object   string `json:"object"`
	IsOnline bool   `json:"is_online"`
}

func NewPresenceResponse(userID string, online bool) *PresenceResponse {
	return &PresenceResponse{UserID: userID, Object: "presence", IsOnline: online}
}
