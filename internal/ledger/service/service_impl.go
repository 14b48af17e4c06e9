package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/rraasi/coin-service/internal/clock"
	"github.com/rraasi/coin-service/internal/config"
	ledgerdomain "github.com/rraasi/coin-service/internal/ledger/domain"
	obsmetrics "github.com/rraasi/coin-service/internal/observability/metrics"
	"github.com/rraasi/coin-service/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       ledgerdomain.Repository
	Config     *config.LedgerConfigHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       ledgerdomain.Repository
	cfg        *config.LedgerConfigHolder
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		cfg:        p.Config,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Append(ctx context.Context, entry ledgerdomain.Entry) (*ledgerdomain.Transaction, error) {
	return s.AppendTx(ctx, s.db, entry)
}

func (s *Service) AppendTx(ctx context.Context, tx *gorm.DB, entry ledgerdomain.Entry) (*ledgerdomain.Transaction, error) {
	txn, err := s.build(entry)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, tx, txn); err != nil {
		s.obsMetrics.RecordLedgerEntry(ctx, string(txn.Type), false)
		return nil, fmt.Errorf("append transaction: %w", err)
	}
	s.obsMetrics.RecordLedgerEntry(ctx, string(txn.Type), true)
	return txn, nil
}

func (s *Service) build(entry ledgerdomain.Entry) (*ledgerdomain.Transaction, error) {
	userID := strings.TrimSpace(entry.UserID)
	if userID == "" {
		return nil, ledgerdomain.ErrInvalidUserID
	}
	if !entry.Type.Valid() {
		return nil, ledgerdomain.ErrInvalidType
	}
	if entry.Amount < 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}

	now := s.clock.Now()
	txn := &ledgerdomain.Transaction{
		ID:            s.genID.Generate(),
		TransactionID: newTransactionID(now.UnixMilli()),
		UserID:        userID,
		Type:          entry.Type,
		Amount:        entry.Amount,
		Description:   entry.Description,
		OccurredAt:    now,
	}
	if featureID := strings.TrimSpace(entry.FeatureID); featureID != "" {
		txn.FeatureID = &featureID
	}
	featureName := strings.TrimSpace(entry.FeatureName)
	if featureName == "" && txn.FeatureID != nil {
		featureName = *txn.FeatureID
	}
	if featureName != "" {
		txn.FeatureName = &featureName
	}
	if txn.Description == "" {
		txn.Description = ledgerdomain.Describe(entry.Type, entry.Amount, featureName)
	}
	if len(entry.Metadata) > 0 {
		txn.Metadata = datatypes.JSONMap(entry.Metadata)
	}
	return txn, nil
}

// newTransactionID returns txn_<unix ms>_<random>.
func newTransactionID(ms int64) string {
	random := ulid.Make().String()[10:]
	return fmt.Sprintf("txn_%d_%s", ms, strings.ToLower(random))
}

func (s *Service) History(ctx context.Context, req ledgerdomain.HistoryRequest) (*ledgerdomain.HistoryResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, ledgerdomain.ErrInvalidUserID
	}

	limit, err := s.normalizeLimit(req.Limit)
	if err != nil {
		return nil, err
	}

	cursor, err := pagination.DecodeCursor(strings.TrimSpace(req.Cursor))
	if err != nil {
		return nil, ledgerdomain.ErrInvalidCursor
	}

	rows, err := s.repo.ListByUser(ctx, s.db, userID, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	page, info, err := pagination.BuildPage(rows, limit, func(t *ledgerdomain.Transaction) pagination.Cursor {
		return pagination.Cursor{ID: int64(t.ID), Timestamp: t.OccurredAt}
	})
	if err != nil {
		return nil, err
	}
	if page == nil {
		page = []*ledgerdomain.Transaction{}
	}

	return &ledgerdomain.HistoryResponse{
		Transactions: page,
		PageInfo:     info,
	}, nil
}

// normalizeLimit applies the default for 0 and rejects values outside [1, max].
func (s *Service) normalizeLimit(limit int) (int, error) {
	cfg := config.DefaultLedgerConfig().History
	if s.cfg != nil {
		cfg = s.cfg.Get().History
	}
	if limit == 0 {
		return cfg.DefaultLimit, nil
	}
	if limit < 1 || limit > cfg.MaxLimit {
		return 0, ledgerdomain.ErrInvalidLimit
	}
	return limit, nil
}

func (s *Service) Totals(ctx context.Context, userID string) (map[ledgerdomain.TransactionType]int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ledgerdomain.ErrInvalidUserID
	}
	rows, err := s.repo.TotalsByType(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("sum transactions: %w", err)
	}
	out := make(map[ledgerdomain.TransactionType]int64, len(rows))
	for _, row := range rows {
		out[row.Type] = row.Total
	}
	return out, nil
}
