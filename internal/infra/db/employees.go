package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"phishaware/internal/domain"
)

// EmployeeDirectory reads the synced employee snapshot. The table is
// populated by an external sync job, never written by this service.
type EmployeeDirectory struct {
	db *gorm.DB
}

func NewEmployeeDirectory(gdb *gorm.DB) *EmployeeDirectory {
	return &EmployeeDirectory{db: gdb}
}

func (d *EmployeeDirectory) Get(ctx context.Context, ref string) (*domain.Employee, error) {
	if d.db == nil {
		return nil, errDBUnavailable
	}
	var model EmployeeModel
	err := d.db.WithContext(ctx).First(&model, "ref = ?", ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	e := employeeFromModel(model)
	return &e, nil
}

func (d *EmployeeDirectory) ListActiveByCompany(ctx context.Context, companyRef string) ([]domain.Employee, error) {
	if d.db == nil {
		return nil, errDBUnavailable
	}
	var models []EmployeeModel
	err := d.db.WithContext(ctx).
		Where("company_ref = ? AND active", companyRef).
		Order("ref").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Employee, 0, len(models))
	for _, m := range models {
		out = append(out, employeeFromModel(m))
	}
	return out, nil
}

func employeeFromModel(m EmployeeModel) domain.Employee {
	return domain.Employee{
		Ref:        m.Ref,
		CompanyRef: m.CompanyRef,
		Email:      m.Email,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Active:     m.Active,
	}
}
