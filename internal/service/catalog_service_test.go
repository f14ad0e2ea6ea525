package service

import (
	"context"
	"testing"

	"resale-market/internal/apperror"
	"resale-market/internal/cache"
	"resale-market/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validListing() ListingInput {
	return ListingInput{
		Title:     "Leather boots",
		Condition: "like_new",
		Price:     8900,
	}
}

func TestCreateListing(t *testing.T) {
	f := newFixture(t, nil)
	seller := uuid.New()

	product, err := f.catalog.CreateListing(context.Background(), seller, validListing())
	require.NoError(t, err)

	assert.Equal(t, domain.ProductAvailable, product.Status)
	assert.Equal(t, "usd", product.Currency)
	assert.Equal(t, seller, product.SellerID)
}

func TestCreateListingValidation(t *testing.T) {
	cases := map[string]func(*ListingInput){
		"zero price":     func(in *ListingInput) { in.Price = 0 },
		"negative price": func(in *ListingInput) { in.Price = -5 },
		"blank title":    func(in *ListingInput) { in.Title = "   " },
		"unknown state":  func(in *ListingInput) { in.Condition = "destroyed" },
		"bad image url":  func(in *ListingInput) { in.ImageURL = "not a url" },
		"long currency":  func(in *ListingInput) { in.Currency = "euro" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil)
			in := validListing()
			mutate(&in)

			_, err := f.catalog.CreateListing(context.Background(), uuid.New(), in)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		})
	}
}

func TestGetProductIsCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	product := f.newProduct(uuid.New(), 1000)

	got, err := f.catalog.Get(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.ID, got.ID)
	assert.True(t, f.redis.Exists(cache.Key(cache.KeyProduct, product.ID)))

	_, err = f.catalog.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestReservationInvalidatesCachedProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	product := f.newProduct(uuid.New(), 1000)

	_, err := f.catalog.Get(ctx, product.ID)
	require.NoError(t, err)

	f.checkout(t, f.newUser(), product)

	got, err := f.catalog.Get(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductReserved, got.Status)
}

func TestRemoveListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	seller := f.newUser()
	product := f.newProduct(seller.ID, 1000)

	_, err := f.catalog.Remove(ctx, product.ID, actorOf(f.newUser()))
	assert.ErrorIs(t, err, ErrForbidden)

	removed, err := f.catalog.Remove(ctx, product.ID, actorOf(seller))
	require.NoError(t, err)
	assert.Equal(t, domain.ProductRemoved, removed.Status)

	reserved := f.newProduct(seller.ID, 1000)
	f.checkout(t, f.newUser(), reserved)
	_, err = f.catalog.Remove(ctx, reserved.ID, actorOf(seller))
	assert.ErrorIs(t, err, ErrNotRemovable)
}

func TestResolveIdentityIsStableAndCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	identity := domain.ExternalIdentity{Subject: "auth0|abc", Email: "a@example.com", Name: "A"}

	first, err := f.identity.Resolve(ctx, identity)
	require.NoError(t, err)
	second, err := f.identity.Resolve(ctx, identity)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.users.upsertCalls)

	_, err = f.identity.Resolve(ctx, domain.ExternalIdentity{})
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
}

func TestProfileHidesEmail(t *testing.T) {
	f := newFixture(t, nil)
	u := f.newUser()
	u.Email = "private@example.com"

	profile, err := f.identity.GetProfile(context.Background(), u.ID)
	require.NoError(t, err)

	assert.Empty(t, profile.Email)
	assert.Equal(t, 0, profile.FollowerCount)
}
