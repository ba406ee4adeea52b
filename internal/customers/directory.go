package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/safar/go-shop-api/internal/apperr"
	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/logging"
	"github.com/safar/go-shop-api/internal/metrics"
	"github.com/safar/go-shop-api/internal/models"
)

const msgEmailTaken = "A customer with this email already exists."

type Repository interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserBySubject(ctx context.Context, sub string) (*models.User, error)

	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	GetCustomerByUser(ctx context.Context, userID int64) (*models.Customer, error)
	ListCustomers(ctx context.Context, limit, offset int) ([]models.Customer, int64, error)
	CustomerEmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	CreateCustomer(ctx context.Context, c *models.Customer) error
	UpdateCustomer(ctx context.Context, c *models.Customer) error
	DeleteCustomer(ctx context.Context, id int64) error

	SaveIdentity(ctx context.Context, u *models.User, c *models.Customer) error
}

// Directory owns customer profiles and their link to identity provider
// accounts.
type Directory struct {
	repo Repository
	now  func() time.Time
}

func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo, now: time.Now}
}

// Identity is a resolved local user with its optional customer profile.
type Identity struct {
	User     *models.User
	Customer *models.Customer
}

// Login creates or refreshes the local user and customer profile for
// verified claims. Users are matched by subject first, then by email.
func (d *Directory) Login(ctx context.Context, claims *models.IdentityClaims) (*Identity, error) {
	user, err := d.findUser(ctx, claims)
	if err != nil {
		return nil, err
	}

	outcome := "updated"
	var customer *models.Customer

	if user == nil {
		if claims.Email == "" {
			metrics.Logins.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("%w: no matching account and no email claim", apperr.ErrAuthenticationFailed)
		}
		outcome = "created"
		user = &models.User{
			Username:  claims.Email,
			Email:     claims.Email,
			FirstName: claims.GivenName,
			LastName:  claims.FamilyName,
		}
		customer = &models.Customer{}
	} else {
		user.FirstName = keep(claims.GivenName, user.FirstName)
		user.LastName = keep(claims.FamilyName, user.LastName)
		user.Email = keep(claims.Email, user.Email)

		customer, err = d.repo.GetCustomerByUser(ctx, user.ID)
		switch {
		case errors.Is(err, database.ErrNotFound):
			customer = &models.Customer{}
		case err != nil:
			return nil, err
		}
	}

	customer.FirstName = keep(claims.GivenName, customer.FirstName)
	customer.LastName = keep(claims.FamilyName, customer.LastName)
	customer.Email = keep(claims.Email, keep(customer.Email, user.Email))
	customer.Phone = keep(claims.PhoneNumber, customer.Phone)
	if claims.Subject != "" {
		sub := claims.Subject
		customer.OIDCSub = &sub
	}
	now := d.now()
	customer.LastLogin = &now

	if err := d.repo.SaveIdentity(ctx, user, customer); err != nil {
		return nil, fmt.Errorf("save identity: %w", err)
	}

	metrics.Logins.WithLabelValues(outcome).Inc()
	logging.Ctx(ctx).Info().
		Int64("user_id", user.ID).
		Int64("customer_id", customer.ID).
		Str("outcome", outcome).
		Msg("identity login")

	return &Identity{User: user, Customer: customer}, nil
}

// Resolve maps verified claims to an existing user without writing.
// The customer is nil when the user has no profile.
func (d *Directory) Resolve(ctx context.Context, claims *models.IdentityClaims) (*Identity, error) {
	user, err := d.findUser(ctx, claims)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: unknown account", apperr.ErrAuthenticationFailed)
	}

	customer, err := d.repo.GetCustomerByUser(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		customer = nil
	}

	return &Identity{User: user, Customer: customer}, nil
}

func (d *Directory) findUser(ctx context.Context, claims *models.IdentityClaims) (*models.User, error) {
	if claims.Subject != "" {
		user, err := d.repo.FindUserBySubject(ctx, claims.Subject)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	if claims.Email != "" {
		user, err := d.repo.FindUserByEmail(ctx, claims.Email)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	return nil, nil
}

func keep(claim, current string) string {
	if claim != "" {
		return claim
	}
	return current
}

// ProfileInput holds customer fields. Nil pointers leave a field unchanged
// on partial updates.
type ProfileInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
}

func (in ProfileInput) apply(c *models.Customer) {
	if in.FirstName != nil {
		c.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		c.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Email != nil {
		c.Email = strings.TrimSpace(*in.Email)
	}
	if in.Phone != nil {
		c.Phone = strings.TrimSpace(*in.Phone)
	}
}

func (d *Directory) validate(ctx context.Context, c *models.Customer) error {
	var v apperr.ValidationError
	if c.Email == "" {
		v.Add("email", "This field is required.")
	} else {
		taken, err := d.repo.CustomerEmailTaken(ctx, c.Email, c.ID)
		if err != nil {
			return err
		}
		if taken {
			v.Add("email", msgEmailTaken)
		}
	}
	if len(c.Phone) > 20 {
		v.Add("phone", "Ensure this field has no more than 20 characters.")
	}
	return v.Err()
}

func (d *Directory) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	return d.repo.GetCustomer(ctx, id)
}

func (d *Directory) ListCustomers(ctx context.Context, limit, offset int) ([]models.Customer, int64, error) {
	return d.repo.ListCustomers(ctx, limit, offset)
}

// CreateCustomer attaches a new profile to userID. A user has at most one.
func (d *Directory) CreateCustomer(ctx context.Context, userID int64, in ProfileInput) (*models.Customer, error) {
	if _, err := d.repo.GetUser(ctx, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NewValidation("user_id", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", userID))
		}
		return nil, err
	}
	if _, err := d.repo.GetCustomerByUser(ctx, userID); err == nil {
		return nil, apperr.NewValidation("user_id", "This user already has a customer profile.")
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	c := &models.Customer{UserID: userID}
	in.apply(c)
	if err := d.validate(ctx, c); err != nil {
		return nil, err
	}

	if err := d.repo.CreateCustomer(ctx, c); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

// UpdateCustomer applies in to the profile. Nil fields are left as is.
func (d *Directory) UpdateCustomer(ctx context.Context, id int64, in ProfileInput) (*models.Customer, error) {
	c, err := d.repo.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}

	in.apply(c)
	if err := d.validate(ctx, c); err != nil {
		return nil, err
	}

	if err := d.repo.UpdateCustomer(ctx, c); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return c, nil
}

// DeleteCustomer fails with database.ErrIntegrity while orders exist.
func (d *Directory) DeleteCustomer(ctx context.Context, id int64) error {
	return d.repo.DeleteCustomer(ctx, id)
}
