package jwtauth

import (
	"errors"
	"time"

	id "candilib/pkg/domain"
	dErrors "candilib/pkg/domain-errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role distinguishes candidate tokens, minted by magic links, from admin
// tokens, minted by password login.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleAdmin     Role = "admin"
)

// Claims represents the JWT claims for access tokens
type Claims struct {
	CandidateID string `json:"candidate_id,omitempty"`
	AdminEmail  string `json:"admin_email,omitempty"`
	Role        Role   `json:"role"`
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewService(signingKey string, issuer string, audience string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

func (s *Service) GenerateCandidateToken(candidateID id.CandidateID, expiresIn time.Duration) (string, error) {
	return s.sign(Claims{
		CandidateID: candidateID.String(),
		Role:        RoleCandidate,
	}, expiresIn)
}

func (s *Service) GenerateAdminToken(email string, expiresIn time.Duration) (string, error) {
	return s.sign(Claims{
		AdminEmail: email,
		Role:       RoleAdmin,
	}, expiresIn)
}

func (s *Service) sign(claims Claims, expiresIn time.Duration) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		Issuer:    s.issuer,
		Audience:  []string{s.audience},
		ID:        uuid.NewString(),
	}
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	return claims, nil
}

// ExtractCandidateID validates the token and returns the candidate it was
// minted for. Admin tokens are rejected here.
func (s *Service) ExtractCandidateID(tokenString string) (id.CandidateID, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return id.CandidateID{}, err
	}
	if claims.Role != RoleCandidate || claims.CandidateID == "" {
		return id.CandidateID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	cid, err := id.ParseCandidateID(claims.CandidateID)
	if err != nil {
		return id.CandidateID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return cid, nil
}

// ExtractAdminEmail validates the token and returns the admin it was minted
// for. Candidate tokens are rejected here.
func (s *Service) ExtractAdminEmail(tokenString string) (string, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Role != RoleAdmin || claims.AdminEmail == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims.AdminEmail, nil
}
