package dto

// Data Transfer Objects for moderator actions

// BanRequest: payload for issuing a ban; username and address are each
// optional but at least one must be present (checked by the service)
type BanRequest struct {
	Username        string `json:"username"`
	Address         string `json:"address"`
	Reason          string `json:"reason" binding:"required"`
	DurationSeconds int64  `json:"duration_seconds"` // 0 = permanent
}

// DisconnectRequest: payload for force-disconnecting a user
type DisconnectRequest struct {
	Username string `json:"username" binding:"required"`
	Reason   string `json:"reason"`
}

// MuteRequest: payload for muting a chatter
type MuteRequest struct {
	Username        string `json:"username" binding:"required"`
	DurationSeconds int64  `json:"duration_seconds"` // 0 = server default
}

// UnmuteRequest: payload for lifting a mute before it expires
type UnmuteRequest struct {
	Username string `json:"username" binding:"required"`
}

// PaginationQuery: shared query params for listing endpoints
type PaginationQuery struct {
	Limit  int `form:"limit,default=50" binding:"max=200"`
	Offset int `form:"offset,default=0"`
}

// AuditQuery: query params for the audit log; a non-empty actor narrows
// the listing to that username's events
type AuditQuery struct {
	Limit  int    `form:"limit,default=50" binding:"max=200"`
	Offset int    `form:"offset,default=0"`
	Actor  string `form:"actor"`
}
