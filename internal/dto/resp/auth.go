package resp

// ProfileResp is the body of GET /auth/yo/.
type ProfileResp struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Tenant string `json:"tenant,omitempty"`
}
