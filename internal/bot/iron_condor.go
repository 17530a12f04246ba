package bot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"condor/internal/config"
	"condor/internal/exchange"
	"condor/internal/models"
	"condor/pkg/utils"
)

// IronCondorStrategy - продажа железного кондора: короткие пут и колл
// по целевой delta, защитные ноги на ширине крыла, вход только при
// достаточной волатильности и свободном риск-бюджете
type IronCondorStrategy struct {
	exch     exchange.Exchange
	cfg      config.StrategyConfig
	risk     *RiskManager
	builder  *StructureBuilder
	executor *OrderExecutor
	monitor  *PositionMonitor
	vol      *VolatilityTracker

	// Необязательный фильтр: true = экспирация валюты в чёрном списке
	blacklistFn func(currency string, expiration time.Time) bool

	notificationChan chan<- *models.Notification
}

// NewIronCondorStrategy создаёт стратегию с внедрёнными коллабораторами
func NewIronCondorStrategy(
	exch exchange.Exchange,
	cfg config.StrategyConfig,
	risk *RiskManager,
	builder *StructureBuilder,
	executor *OrderExecutor,
	monitor *PositionMonitor,
	vol *VolatilityTracker,
	notifChan chan<- *models.Notification,
) *IronCondorStrategy {
	return &IronCondorStrategy{
		exch:             exch,
		cfg:              cfg,
		risk:             risk,
		builder:          builder,
		executor:         executor,
		monitor:          monitor,
		vol:              vol,
		notificationChan: notifChan,
	}
}

// Name возвращает имя стратегии
func (s *IronCondorStrategy) Name() string {
	return "iron_condor"
}

// SetBlacklist устанавливает фильтр чёрного списка экспираций
func (s *IronCondorStrategy) SetBlacklist(fn func(currency string, expiration time.Time) bool) {
	s.blacklistFn = fn
}

// Scan ищет кандидатов на вход по всем валютам.
// Отказ выбора страйков или фильтра волатильности - это "не строится",
// не ошибка: сканирование продолжает следующую валюту
func (s *IronCondorStrategy) Scan(ctx context.Context) ([]*models.Condor, error) {
	if s.risk.IsStopped() {
		return nil, ErrTradingStopped
	}

	var candidates []*models.Condor

	for _, currency := range s.cfg.Currencies {
		started := time.Now()

		condor, err := s.scanCurrency(ctx, currency)
		RecordScan(currency, time.Since(started).Seconds())

		if err != nil {
			utils.L().Info("no candidate for currency",
				utils.Currency(currency), utils.Err(err))
			RecordCandidate(currency, false)
			continue
		}
		if condor == nil {
			continue
		}

		RecordCandidate(currency, true)
		candidates = append(candidates, condor)
	}

	return candidates, nil
}

// scanCurrency строит кандидата для одной валюты.
// nil без ошибки = вход сейчас не нужен (дубликат, чёрный список)
func (s *IronCondorStrategy) scanCurrency(ctx context.Context, currency string) (*models.Condor, error) {
	spot, err := s.exch.GetIndexPrice(ctx, currency)
	if err != nil {
		return nil, fmt.Errorf("index price: %w", err)
	}
	UpdateIndexPrice(currency, spot)

	expiration, chain, err := s.loadChain(ctx, currency)
	if err != nil {
		return nil, err
	}

	if s.blacklistFn != nil && s.blacklistFn(currency, expiration) {
		utils.L().Info("expiration is blacklisted, skipping",
			utils.Currency(currency), utils.String("expiration", utils.ExpiryTag(expiration)))
		return nil, nil
	}

	if s.hasOpenFor(currency, expiration) {
		return nil, nil
	}

	// Фильтр волатильности: точка IV пишется в историю даже при отказе,
	// иначе перцентиль никогда не наберёт данных
	atmIV, err := ATMIV(chain, spot)
	if err != nil {
		return nil, fmt.Errorf("atm iv: %w", err)
	}
	ok, reason := s.vol.ShouldEnter(currency, atmIV)
	s.vol.Record(currency, atmIV)
	if !ok {
		return nil, fmt.Errorf("volatility filter: %s", reason)
	}

	equity := s.risk.TotalEquity(ctx)
	budget := s.risk.StructureBudget(equity)

	condor, err := s.builder.Build(BuildParams{
		Currency:           currency,
		Chain:              chain,
		Spot:               spot,
		Expiration:         expiration,
		RiskBudget:         budget,
		TakeProfitRatio:    s.cfg.TakeProfitRatio,
		StopLossMultiplier: s.cfg.StopLossMultiplier,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot build: %w", err)
	}

	if err := s.risk.ValidateTrade(condor.MaxLoss, equity); err != nil {
		s.notifyDenied(condor, err.Error())
		return nil, err
	}

	if allowed, denyReason := s.risk.CanOpenNewPosition(ctx); !allowed {
		s.notifyDenied(condor, denyReason)
		return nil, fmt.Errorf("%w: %s", ErrRiskDenied, denyReason)
	}

	return condor, nil
}

// loadChain выбирает ближайшую экспирацию в окне DTE и загружает котировки
// всех её опционов. Инструменты без пригодной котировки пропускаются
func (s *IronCondorStrategy) loadChain(ctx context.Context, currency string) (time.Time, []*models.OptionQuote, error) {
	instruments, err := s.exch.GetInstruments(ctx, currency)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("instruments: %w", err)
	}

	// Группируем по экспирации в окне [MinDTE, MaxDTE]
	byExpiry := make(map[time.Time][]*exchange.Instrument)
	for _, in := range instruments {
		if !in.IsActive {
			continue
		}
		if !utils.IsWithinDTEWindow(in.Expiration, s.cfg.MinDTE, s.cfg.MaxDTE) {
			continue
		}
		byExpiry[in.Expiration] = append(byExpiry[in.Expiration], in)
	}
	if len(byExpiry) == 0 {
		return time.Time{}, nil, fmt.Errorf("no expirations within DTE window [%d, %d]", s.cfg.MinDTE, s.cfg.MaxDTE)
	}

	expirations := make([]time.Time, 0, len(byExpiry))
	for exp := range byExpiry {
		expirations = append(expirations, exp)
	}
	sort.Slice(expirations, func(i, j int) bool { return expirations[i].Before(expirations[j]) })
	expiration := expirations[0]

	chain := make([]*models.OptionQuote, 0, len(byExpiry[expiration]))
	for _, in := range byExpiry[expiration] {
		quote, err := s.exch.GetQuote(ctx, in.Name)
		if err != nil {
			utils.L().Debug("quote unavailable, skipping instrument",
				utils.Instrument(in.Name), utils.Err(err))
			continue
		}
		chain = append(chain, &models.OptionQuote{
			Instrument: in.Name,
			Strike:     in.Strike,
			Kind:       in.Kind,
			Delta:      quote.Delta,
			MarkPrice:  quote.MarkPrice,
			MarkIV:     quote.MarkIV,
		})
	}
	if len(chain) == 0 {
		return time.Time{}, nil, fmt.Errorf("no quotes for expiration %s", utils.ExpiryTag(expiration))
	}

	SortByStrike(chain)
	return expiration, chain, nil
}

// ExecuteEntry открывает структуру-кандидата.
// Только ПОСЛЕ полного открытия структура становится видна монитору:
// открытие и мониторинг одной структуры взаимоисключающие
func (s *IronCondorStrategy) ExecuteEntry(ctx context.Context, condor *models.Condor) error {
	if s.risk.IsStopped() {
		return ErrTradingStopped
	}

	if err := s.executor.OpenStructure(ctx, condor); err != nil {
		s.notify(&models.Notification{
			Timestamp:   time.Now().UTC(),
			Type:        models.NotificationTypeRollback,
			Severity:    models.SeverityWarn,
			StructureID: condor.ID,
			Message:     fmt.Sprintf("⚠️ Structure entry rolled back: %v", err),
		})
		return err
	}

	s.monitor.Track(condor)

	s.notify(&models.Notification{
		Timestamp:   time.Now().UTC(),
		Type:        models.NotificationTypeOpen,
		Severity:    models.SeverityInfo,
		StructureID: condor.ID,
		Message: fmt.Sprintf("✅ Opened condor %s %s: credit %.2f USD, max loss %.2f USD",
			condor.Currency, utils.ExpiryTag(condor.Expiration), condor.Credit, condor.MaxLoss),
		Meta: map[string]interface{}{
			"credit":   condor.Credit,
			"max_loss": condor.MaxLoss,
			"size":     condor.Size,
		},
	})
	return nil
}

// ManagePositions выполняет один цикл мониторинга открытых структур
func (s *IronCondorStrategy) ManagePositions(ctx context.Context) (*models.MonitorStats, error) {
	return s.monitor.MonitorOnce(ctx), nil
}

// hasOpenFor проверяет, есть ли уже структура на эту валюту и экспирацию
func (s *IronCondorStrategy) hasOpenFor(currency string, expiration time.Time) bool {
	for _, c := range s.monitor.Tracked() {
		if c.Currency == currency && c.Expiration.Equal(expiration) {
			return true
		}
	}
	return false
}

func (s *IronCondorStrategy) notifyDenied(condor *models.Condor, reason string) {
	s.notify(&models.Notification{
		Timestamp:   time.Now().UTC(),
		Type:        models.NotificationTypeRiskDenied,
		Severity:    models.SeverityWarn,
		StructureID: condor.ID,
		Message:     "🚫 Entry denied by risk manager: " + reason,
	})
}

func (s *IronCondorStrategy) notify(notif *models.Notification) {
	if s.notificationChan == nil {
		return
	}
	select {
	case s.notificationChan <- notif:
	default:
		RecordBufferOverflow("notification")
	}
}
