package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/repository"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/util"
)

// CustomerService ведет историю клиентов (SCD Type 2)
type CustomerService struct {
	stagingRepo    repository.StagingRepository
	customerRepo   repository.CustomerRepository
	defaultCountry string
	batchSize      int
	clock          func() time.Time
}

// NewCustomerService создает сервис версионирования клиентов
func NewCustomerService(
	stagingRepo repository.StagingRepository,
	customerRepo repository.CustomerRepository,
	defaultCountry string,
	batchSize int,
) *CustomerService {
	return &CustomerService{
		stagingRepo:    stagingRepo,
		customerRepo:   customerRepo,
		defaultCountry: defaultCountry,
		batchSize:      batchSize,
		clock:          time.Now,
	}
}

func (s *CustomerService) Name() entity.StageName {
	return entity.StageVersionCustomer
}

// CustomerFingerprint отпечаток отслеживаемых атрибутов клиента
func CustomerFingerprint(c *entity.CustomerDim) string {
	return util.Fingerprint(util.CustomerFingerprintVersion,
		util.Field("full_name", c.FullName),
		util.Field("username", c.Username),
		util.Field("password_digest", c.PasswordDigest),
		util.Field("email", c.Email),
		util.Field("phone", c.Phone),
		util.Field("address", c.Address),
		util.Field("geolocation", c.Geolocation),
		util.Field("country", c.Country),
	)
}

// BuildCustomer выводит атрибуты измерения из строки снимка (без отпечатка и интервала)
func BuildCustomer(u *entity.StagedUser, country string) entity.CustomerDim {
	return entity.CustomerDim{
		CustomerID:     strconv.FormatInt(u.ID, 10),
		FullName:       util.CanonicalString(u.NameFirst + " " + u.NameLast),
		Username:       util.CanonicalString(u.Username),
		PasswordDigest: util.Digest(u.Password),
		Email:          util.CanonicalString(u.Email),
		Phone:          util.CanonicalString(u.Phone),
		Address:        formatAddress(u),
		Geolocation:    formatGeolocation(u.GeolocationLat, u.GeolocationLong),
		Country:        util.CanonicalString(country),
	}
}

// formatAddress собирает "<номер> <улица>, <город>, <индекс>" только из полей снимка
func formatAddress(u *entity.StagedUser) string {
	street := util.CanonicalString(u.AddressStreet)
	if u.AddressNumber > 0 {
		street = util.CanonicalString(strconv.Itoa(u.AddressNumber) + " " + street)
	}

	parts := make([]string, 0, 3)
	for _, part := range []string{street, util.CanonicalString(u.AddressCity), util.CanonicalString(u.AddressZipcode)} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

func formatGeolocation(lat, long string) string {
	lat, long = strings.TrimSpace(lat), strings.TrimSpace(long)
	if lat == "" && long == "" {
		return ""
	}
	return lat + "," + long
}

type customerChange struct {
	currentSK int64
	next      entity.CustomerDim
}

// Run сравнивает снимок с текущими версиями:
// новый клиент - первая версия, изменившийся - закрытие текущей и открытие
// новой в одной транзакции, неизменный - пропуск.
// Все версии одного запуска открываются и закрываются одним моментом now
func (s *CustomerService) Run(ctx context.Context) (*entity.StageResult, error) {
	users, err := s.stagingRepo.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged users: %w", err)
	}

	current, err := s.customerRepo.ListCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read current customers: %w", err)
	}
	currentByID := make(map[string]entity.CustomerDim, len(current))
	for _, c := range current {
		currentByID[c.CustomerID] = c
	}

	rec := newStageRecorder(ctx, s.Name())
	now := s.clock().UTC().Truncate(time.Microsecond)

	seen := make(map[string]struct{}, len(users))
	var inserts []entity.CustomerDim
	var changes []customerChange
	for i := range users {
		row := &users[i]
		key := customerKey(row.ID)
		if !rec.validate(key, row) {
			continue
		}

		next := BuildCustomer(row, s.defaultCountry)
		if _, dup := seen[next.CustomerID]; dup {
			rec.reject(key, fmt.Errorf("%w: customer %s appears twice in snapshot", ErrDuplicateKey, next.CustomerID))
			continue
		}
		seen[next.CustomerID] = struct{}{}

		next.DataHash = CustomerFingerprint(&next)
		next.StartDate = now
		next.IsCurrent = true

		cur, exists := currentByID[next.CustomerID]
		switch {
		case !exists:
			inserts = append(inserts, next)
		case cur.DataHash == next.DataHash:
			rec.result.Skipped++
		default:
			changes = append(changes, customerChange{currentSK: cur.CustomerSK, next: next})
		}
	}

	inserted, _, err := writeInBatches(ctx, rec, inserts, s.batchSize,
		func(c entity.CustomerDim) string { return "customer:" + c.CustomerID },
		func(ctx context.Context, batch []entity.CustomerDim) (int64, error) {
			if err := s.customerRepo.InsertNew(ctx, batch); err != nil {
				return 0, err
			}
			return int64(len(batch)), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert customers: %w", err)
	}
	rec.result.Inserted = int(inserted)

	for i := range changes {
		change := &changes[i]
		key := "customer:" + change.next.CustomerID

		err := s.customerRepo.ReplaceCurrent(ctx, change.currentSK, now, &change.next)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("failed to version customers: %w", ctxErr)
			}
			if errors.Is(err, repository.ErrCurrentVersionChanged) {
				err = fmt.Errorf("%w: current version %d was closed by another writer", ErrConcurrencyConflict, change.currentSK)
			}
			rec.reject(key, err)
			continue
		}
		rec.result.Updated++
	}

	return rec.done(), nil
}

func customerKey(id int64) string {
	return fmt.Sprintf("customer:%d", id)
}
