package auth

import (
	"github.com/angelmondragon/cartline-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	SubjectID uuid.UUID
	Role      enums.ActorRole
	JTI       string
}

// AccessTokenClaims represents the typed JWT presented by clients. userId
// is the user id for customers and the merchant id for merchants.
type AccessTokenClaims struct {
	UserID uuid.UUID       `json:"userId"`
	Role   enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
