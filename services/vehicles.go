package services

import (
	"context"
	"strings"
	"time"

	"github.com/Jwl06/civicledger360/chain"
	"github.com/Jwl06/civicledger360/models"
	"github.com/Jwl06/civicledger360/store"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// VehicleInput registers a vehicle. Chassis and engine numbers are hashed and the
// raw values discarded.
type VehicleInput struct {
	PlateNumber   string `json:"plateNumber" validate:"required"`
	ChassisNumber string `json:"chassisNumber"`
	EngineNumber  string `json:"engineNumber"`
	OwnerName     string `json:"ownerName" validate:"required"`
	OwnerAddress  string `json:"ownerAddress"`
	VehicleType   string `json:"vehicleType" validate:"required"`
	Model         string `json:"model"`
	Year          int    `json:"year" validate:"omitempty,gte=1900,lte=2100"`
}

// VehicleService registers and looks up vehicles.
type VehicleService struct {
	store    store.VehicleStore
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

func NewVehicleService(st store.VehicleStore, log *zap.Logger) *VehicleService {
	return &VehicleService{
		store:    st,
		validate: newValidator(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register stores a new active vehicle.
func (s *VehicleService) Register(ctx context.Context, in VehicleInput) (models.Vehicle, error) {
	in.PlateNumber = strings.TrimSpace(in.PlateNumber)
	in.OwnerName = strings.TrimSpace(in.OwnerName)
	in.VehicleType = strings.TrimSpace(in.VehicleType)
	if err := s.validate.Struct(in); err != nil {
		return models.Vehicle{}, validationError(err)
	}

	now := s.now()
	year := in.Year
	if year == 0 {
		year = now.Year()
	}

	v := models.Vehicle{
		PlateNumber:       in.PlateNumber,
		HashedPlateNumber: chain.HashIdentifier(in.PlateNumber),
		OwnerName:         in.OwnerName,
		OwnerAddress:      strings.TrimSpace(in.OwnerAddress),
		VehicleType:       in.VehicleType,
		Model:             strings.TrimSpace(in.Model),
		Year:              year,
		RegistrationDate:  now,
		IsActive:          true,
	}
	if in.ChassisNumber != "" {
		v.HashedChassisID = chain.HashIdentifier(in.ChassisNumber)
	}
	if in.EngineNumber != "" {
		v.HashedEngineNumber = chain.HashIdentifier(in.EngineNumber)
	}

	created, err := s.store.CreateVehicle(ctx, v)
	if err != nil {
		return models.Vehicle{}, err
	}
	s.log.Info("vehicle registered", zap.Int64("id", created.ID), zap.String("plate", created.PlateNumber))
	return created, nil
}

// Get returns one vehicle.
func (s *VehicleService) Get(ctx context.Context, id int64) (models.Vehicle, error) {
	return s.store.GetVehicle(ctx, id)
}

// List returns vehicles, optionally only those owned by owner.
func (s *VehicleService) List(ctx context.Context, owner string) ([]models.Vehicle, error) {
	return s.store.ListVehicles(ctx, strings.TrimSpace(owner))
}
