package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"github.com/goupclub/goup/app/models"
	"gorm.io/gorm"
)

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
const codeLength = 8

var (
	ErrInvalidCode  = errors.New("invalid invitation code")
	ErrSelfReferral = errors.New("cannot bind own invitation code")
)

// BindResult reports the outcome of a bind attempt. AlreadyBound means the
// invitee was bound earlier; the existing binding is left untouched.
type BindResult struct {
	InviterID    uint `json:"inviter_id"`
	InviteeID    uint `json:"invitee_id"`
	AlreadyBound bool `json:"already_bound"`
}

// Service issues invite codes and binds invitees to inviters.
type Service struct {
	repo Repository
}

// NewService creates a referral service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a referral service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Code returns the member's invite code, generating one on first access.
// The insert tolerates a concurrent winner; whatever code ends up stored is
// returned.
func (s *Service) Code(ctx context.Context, memberID uint) (string, error) {
	_ = ctx
	existing, err := s.repo.FindCodeByMember(memberID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.Code, nil
	}

	for attempt := 0; attempt < 5; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if err := s.repo.CreateCodeIfAbsent(&models.InviteCode{MemberID: memberID, Code: code}); err != nil {
			return "", err
		}
		if existing, err := s.repo.FindCodeByMember(memberID); err != nil {
			return "", err
		} else if existing != nil {
			return existing.Code, nil
		}
	}
	return "", errors.New("could not allocate invite code")
}

// Bind links the invitee to the owner of the code. An invitee can be bound at
// most once; repeat calls report AlreadyBound without changing anything.
func (s *Service) Bind(ctx context.Context, inviteeID uint, code, channel string) (*BindResult, error) {
	_ = ctx
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrInvalidCode
	}

	existing, err := s.repo.FindReferralByInvitee(inviteeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &BindResult{InviterID: existing.InviterID, InviteeID: inviteeID, AlreadyBound: true}, nil
	}

	owner, err := s.repo.FindCodeOwner(code)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, ErrInvalidCode
	}
	if owner.MemberID == inviteeID {
		return nil, ErrSelfReferral
	}

	if err := s.repo.CreateReferralIfAbsent(&models.Referral{
		InviterID: owner.MemberID,
		InviteeID: inviteeID,
		Channel:   channel,
	}); err != nil {
		return nil, err
	}
	// A concurrent bind may have won the unique index; report whichever holds.
	bound, err := s.repo.FindReferralByInvitee(inviteeID)
	if err != nil {
		return nil, err
	}
	if bound == nil {
		return nil, errors.New("referral bind not recorded")
	}
	return &BindResult{
		InviterID:    bound.InviterID,
		InviteeID:    inviteeID,
		AlreadyBound: bound.InviterID != owner.MemberID,
	}, nil
}

func randomCode() (string, error) {
	var b strings.Builder
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
