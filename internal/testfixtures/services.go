package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/venue-booking/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator(0),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator(0)
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

func (f *ServiceFactory) defaults(idGen func() string, now func() time.Time) (func() string, func() time.Time) {
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return idGen, now
}

// VenueServiceDeps captures dependencies for constructing a venue service.
type VenueServiceDeps struct {
	Venues      application.VenueRepository
	Bookings    application.BookingRepository
	Zones       application.ZoneResolver
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewVenueService builds a venue service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewVenueService(deps VenueServiceDeps) *application.VenueService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewVenueServiceWithLogger(deps.Venues, deps.Bookings, deps.Zones, idGen, now, deps.Logger)
}

// BookingServiceDeps captures dependencies for constructing a booking service.
type BookingServiceDeps struct {
	Bookings    application.BookingRepository
	Venues      application.VenueLookup
	Conflicts   application.ConflictFinder
	Zones       application.ZoneResolver
	Locker      application.VenueLocker
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewBookingService builds a booking service using the supplied dependencies.
func (f *ServiceFactory) NewBookingService(deps BookingServiceDeps) *application.BookingService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewBookingServiceWithLogger(
		deps.Bookings,
		deps.Venues,
		deps.Conflicts,
		deps.Zones,
		deps.Locker,
		idGen,
		now,
		deps.Logger,
	)
}
