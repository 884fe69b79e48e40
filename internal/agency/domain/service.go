package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateAgencyRequest struct {
	Name           string
	Postcode       string
	ConsultingType int
	TeamAgency     bool
}

type Service interface {
	Create(context.Context, CreateAgencyRequest) (Agency, error)
	GetByID(context.Context, snowflake.ID) (Agency, error)
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidPostcode = errors.New("invalid_postcode")
	ErrNotFound        = errors.New("agency_not_found")
)
