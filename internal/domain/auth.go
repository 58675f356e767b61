package domain

// TokenType differentiates access and refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Principal is the authenticated actor performing an action.
type Principal struct {
	ID          string
	Email       string
	Role        Role
	IsStaff     bool
	IsSuperuser bool
	IsActive    bool
}

// PrincipalFromUser builds the principal view of a stored user.
func PrincipalFromUser(user *User) *Principal {
	if user == nil {
		return nil
	}
	return &Principal{
		ID:          user.ID,
		Email:       user.Email,
		Role:        user.Role,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
		IsActive:    user.IsActive,
	}
}
