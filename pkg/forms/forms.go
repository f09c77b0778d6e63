// Package forms validates and normalizes user input before it reaches the
// mutation gateway. The core assumes everything past this point is well formed.
package forms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/monarch/pkg/models"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError lists the offending fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, tag := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, tag))
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

type RouteForm struct {
	Name string `json:"name" validate:"required"`
}

type ShopForm struct {
	Name    string `json:"name" validate:"required"`
	Area    string `json:"area" validate:"required"`
	RouteID string `json:"routeId" validate:"required"`
}

type ProductForm struct {
	Name  string   `json:"name" validate:"required"`
	Size  string   `json:"size" validate:"required"`
	Price *float64 `json:"price" validate:"required,gte=0"`
}

type ExpenseForm struct {
	Reason string   `json:"reason" validate:"required"`
	Amount *float64 `json:"amount" validate:"required,gte=0"`
}

type ProfileForm struct {
	Name   string `json:"name" validate:"required"`
	Region string `json:"region" validate:"required"`
}

type CheckoutForm struct {
	ShopID string `json:"shopId" validate:"required"`
}

func (f RouteForm) Route() (models.Route, error) {
	f.Name = upper(f.Name)
	if err := check(f); err != nil {
		return models.Route{}, err
	}
	return models.Route{Name: f.Name}, nil
}

func (f ShopForm) Shop() (models.Shop, error) {
	f.Name = upper(f.Name)
	f.Area = upper(f.Area)
	f.RouteID = strings.TrimSpace(f.RouteID)
	if err := check(f); err != nil {
		return models.Shop{}, err
	}
	return models.Shop{Name: f.Name, Area: f.Area, RouteID: f.RouteID}, nil
}

func (f ProductForm) Product() (models.Product, error) {
	f.Name = upper(f.Name)
	f.Size = strings.TrimSpace(f.Size)
	if err := check(f); err != nil {
		return models.Product{}, err
	}
	return models.Product{Name: f.Name, Size: f.Size, Price: *f.Price}, nil
}

func (f ExpenseForm) Expense() (reason string, amount float64, err error) {
	f.Reason = upper(f.Reason)
	if err := check(f); err != nil {
		return "", 0, err
	}
	return f.Reason, *f.Amount, nil
}

func (f ProfileForm) Profile() (models.Profile, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.Region = strings.TrimSpace(f.Region)
	if err := check(f); err != nil {
		return models.Profile{}, err
	}
	return models.Profile{Name: f.Name, Region: f.Region}, nil
}

func (f CheckoutForm) Validate() error {
	return check(f)
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = fe.Tag()
	}
	return out
}
