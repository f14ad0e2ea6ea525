package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"resale-market/internal/apperror"
	"resale-market/internal/domain"
	"resale-market/internal/repository"

	"github.com/google/uuid"
)

// AddressInput is the writable part of an address
type AddressInput struct {
	Type       domain.AddressType
	FullName   string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
	IsDefault  bool
}

// AddressService manages a user's address book. Each user has at most one
// default address per type.
type AddressService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error)
	Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*domain.Address, error)
	Update(ctx context.Context, userID, id uuid.UUID, input AddressInput) (*domain.Address, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	SetDefault(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error)
}

type addressService struct {
	addresses repository.AddressRepository
}

// NewAddressService creates a new instance of AddressService
func NewAddressService(addresses repository.AddressRepository) AddressService {
	return &addressService{addresses: addresses}
}

func (s *addressService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	addresses, err := s.addresses.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Dependency("failed to list addresses", err)
	}
	return addresses, nil
}

func (s *addressService) Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*domain.Address, error) {
	if input.Type != domain.AddressShipping && input.Type != domain.AddressBilling {
		return nil, apperror.Validation("address type must be SHIPPING or BILLING")
	}

	now := time.Now().UTC()
	address := &domain.Address{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyAddressInput(address, input)

	if err := s.addresses.Create(ctx, address); err != nil {
		return nil, apperror.Dependency("failed to create address", err)
	}
	return address, nil
}

func (s *addressService) Update(ctx context.Context, userID, id uuid.UUID, input AddressInput) (*domain.Address, error) {
	address, err := s.addresses.FindByID(ctx, userID, id)
	if err != nil {
		return nil, mapAddressErr(err, "failed to load address")
	}

	if input.Type == "" {
		input.Type = address.Type
	}
	if input.Type != domain.AddressShipping && input.Type != domain.AddressBilling {
		return nil, apperror.Validation("address type must be SHIPPING or BILLING")
	}

	applyAddressInput(address, input)
	address.UpdatedAt = time.Now().UTC()

	if err := s.addresses.Update(ctx, address); err != nil {
		return nil, mapAddressErr(err, "failed to update address")
	}
	return address, nil
}

func (s *addressService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.addresses.Delete(ctx, userID, id); err != nil {
		return mapAddressErr(err, "failed to delete address")
	}
	return nil
}

func (s *addressService) SetDefault(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	address, err := s.addresses.SetDefault(ctx, userID, id)
	if err != nil {
		return nil, mapAddressErr(err, "failed to set default address")
	}
	return address, nil
}

func applyAddressInput(address *domain.Address, input AddressInput) {
	address.Type = input.Type
	address.FullName = strings.TrimSpace(input.FullName)
	address.Line1 = strings.TrimSpace(input.Line1)
	address.Line2 = strings.TrimSpace(input.Line2)
	address.City = strings.TrimSpace(input.City)
	address.State = strings.TrimSpace(input.State)
	address.PostalCode = strings.TrimSpace(input.PostalCode)
	address.Country = strings.ToUpper(strings.TrimSpace(input.Country))
	address.Phone = strings.TrimSpace(input.Phone)
	address.IsDefault = input.IsDefault
}

func mapAddressErr(err error, msg string) error {
	if errors.Is(err, repository.ErrAddressNotFound) {
		return ErrAddressNotFound
	}
	return apperror.Dependency(msg, err)
}
