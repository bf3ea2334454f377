package repository

import (
	"context"
	"errors"
	"time"

	"meal-order-backend/internal/model"

	"gorm.io/gorm"
)

type CustomerRepository interface {
	Create(ctx context.Context, tx *gorm.DB, customer *model.Customer) error
	FindByID(ctx context.Context, tx *gorm.DB, customerID string) (*model.Customer, error)
	// FindByContact looks up by email first, then by phone. Returns nil when neither matches.
	FindByContact(ctx context.Context, tx *gorm.DB, email, phone string) (*model.Customer, error)
	RefreshDetails(ctx context.Context, tx *gorm.DB, customerID string, from *model.DeliverySnapshot) error
}

type customerRepoImpl struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepoImpl{db: db}
}

func (r *customerRepoImpl) Create(ctx context.Context, tx *gorm.DB, customer *model.Customer) error {
	return conn(ctx, r.db, tx).Create(customer).Error
}

func (r *customerRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, customerID string) (*model.Customer, error) {
	var customer model.Customer
	err := conn(ctx, r.db, tx).
		Where("id = ?", customerID).
		First(&customer).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &customer, nil
}

func (r *customerRepoImpl) FindByContact(ctx context.Context, tx *gorm.DB, email, phone string) (*model.Customer, error) {
	lookups := []struct {
		column string
		value  string
	}{
		{"email", email},
		{"phone", phone},
	}

	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		var customer model.Customer
		err := conn(ctx, r.db, tx).
			Where(l.column+" = ?", l.value).
			Order("created_at").
			First(&customer).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &customer, nil
	}

	return nil, nil
}

// RefreshDetails copies name, phone and address from the latest delivery. Email is the identity and stays.
func (r *customerRepoImpl) RefreshDetails(ctx context.Context, tx *gorm.DB, customerID string, from *model.DeliverySnapshot) error {
	return conn(ctx, r.db, tx).Model(&model.Customer{}).
		Where("id = ?", customerID).
		Updates(map[string]interface{}{
			"first_name":    from.FirstName,
			"last_name":     from.LastName,
			"phone":         from.Phone,
			"address_line1": from.AddressLine1,
			"address_line2": from.AddressLine2,
			"suburb":        from.Suburb,
			"state":         from.State,
			"postcode":      from.Postcode,
			"updated_at":    time.Now(),
		}).Error
}
