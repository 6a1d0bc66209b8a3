package enums

import "slices"

// ActorRole identifies which kind of account a bearer token belongs to.
type ActorRole string

const (
	ActorRoleUser     ActorRole = "user"
	ActorRoleMerchant ActorRole = "merchant"
)

func (a ActorRole) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorRole.
func (a ActorRole) IsValid() bool {
	return slices.Contains([]ActorRole{ActorRoleUser, ActorRoleMerchant}, a)
}
