package repository

import (
	"time"

	"gorm.io/datatypes"

	"trading_simulator/internal/domain"
)

// The table and column names below are the historical Spanish schema the
// simulator has always written to. Renaming them would orphan every existing
// ledger, so the models keep the wire names and translate at the boundary.

type InvestorModel struct {
	ID                  int64   `gorm:"column:id_inversionista;primaryKey;autoIncrement"`
	Nombre              string  `gorm:"column:nombre"`
	CapitalAportado     float64 `gorm:"column:capital_aportado"`
	CapitalActual       float64 `gorm:"column:capital_actual"`
	RiesgoMaxPct        float64 `gorm:"column:riesgo_max_operacion_pct"`
	TamanoMin           float64 `gorm:"column:tamano_min_operacion"`
	TamanoMax           float64 `gorm:"column:tamano_max_operacion"`
	LimiteDiario        int     `gorm:"column:limite_diario_operaciones"`
	LimiteAbiertas      int     `gorm:"column:limite_operaciones_abiertas"`
	ApalancamientoMax   float64 `gorm:"column:apalancamiento_max"`
	ComisionPct         float64 `gorm:"column:comision_operacion_pct"`
	SlippagePct         float64 `gorm:"column:slippage_pct"`
	UsarParametrosSenal bool    `gorm:"column:usar_parametros_senal"`
	Activo              bool    `gorm:"column:activo"`
}

func (InvestorModel) TableName() string { return "inversionistas" }

func (m *InvestorModel) toDomain() domain.Investor {
	// Every run replays the window from scratch, so the ledger starts at
	// contributed capital; capital_actual only stores the previous run's
	// final balance.
	inv := domain.Investor{
		ID:                 m.ID,
		ContributedCapital: m.CapitalAportado,
		CurrentCapital:     m.CapitalAportado,
		RiskMaxPct:         m.RiesgoMaxPct,
		SizeMin:            m.TamanoMin,
		SizeMax:            m.TamanoMax,
		DailyLimit:         m.LimiteDiario,
		OpenPositionsLimit: m.LimiteAbiertas,
		MaxLeverage:        m.ApalancamientoMax,
		CommissionPct:      m.ComisionPct,
		SlippagePct:        m.SlippagePct,
		UseSignalLeverage:  m.UsarParametrosSenal,
	}
	inv.EnsurePositions()
	return inv
}

type StrategyModel struct {
	ID                    int64    `gorm:"column:id_estrategia;primaryKey;autoIncrement"`
	Nombre                string   `gorm:"column:nombre"`
	RetrocesoAperturaPct  *float64 `gorm:"column:retroceso_apertura_pct"`
	RetrocesoMaximoPct    *float64 `gorm:"column:retroceso_maximo_pct"`
	UmbralLiquidacionPct  *float64 `gorm:"column:umbral_liquidacion_parcial_pct"`
	PorcentajeLiquidacion *float64 `gorm:"column:porcentaje_liquidacion_parcial"`
	Activa                bool     `gorm:"column:activa"`
}

func (StrategyModel) TableName() string { return "estrategias" }

type SignalModel struct {
	ID                   int64          `gorm:"column:id_senal;primaryKey;autoIncrement"`
	StrategyID           int64          `gorm:"column:id_estrategia;index"`
	Ticker               string         `gorm:"column:ticker;index:idx_senal_ticker_ts"`
	Timestamp            time.Time      `gorm:"column:timestamp_senal;index:idx_senal_ticker_ts"`
	Direccion            string         `gorm:"column:direccion"`
	PrecioSenal          float64        `gorm:"column:precio_senal"`
	TakeProfit           float64        `gorm:"column:take_profit"`
	StopLoss             float64        `gorm:"column:stop_loss"`
	Apalancamiento       float64        `gorm:"column:apalancamiento"`
	RequiereConfirmacion bool           `gorm:"column:requiere_confirmacion"`
	Payload              datatypes.JSON `gorm:"column:payload"`
}

func (SignalModel) TableName() string { return "senales_generadas" }

func (m *SignalModel) toDomain() domain.Signal {
	return domain.Signal{
		ID:                   m.ID,
		StrategyID:           m.StrategyID,
		Ticker:               m.Ticker,
		Timestamp:            m.Timestamp,
		Side:                 domain.Side(m.Direccion),
		Price:                m.PrecioSenal,
		TakeProfit:           m.TakeProfit,
		StopLoss:             m.StopLoss,
		Leverage:             m.Apalancamiento,
		RequiresConfirmation: m.RequiereConfirmacion,
		RawPayload:           []byte(m.Payload),
	}
}

type CandleModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Ticker    string    `gorm:"column:ticker;index:idx_ohlcv_ticker_ts,unique"`
	Timestamp time.Time `gorm:"column:timestamp;index:idx_ohlcv_ticker_ts,unique"`
	Open      float64   `gorm:"column:open"`
	High      float64   `gorm:"column:high"`
	Low       float64   `gorm:"column:low"`
	Close     float64   `gorm:"column:close"`
	Volume    float64   `gorm:"column:volume"`
}

func (CandleModel) TableName() string { return "ohlcv_raw_1m" }

func (m *CandleModel) toDomain() domain.Candle {
	return domain.Candle{
		ID:     m.ID,
		Ticker: m.Ticker,
		High:   m.High,
		Low:    m.Low,
		Close:  m.Close,
	}
}

type OperationModel struct {
	ID              int64      `gorm:"column:id_operacion;primaryKey;autoIncrement"`
	SignalID        int64      `gorm:"column:id_senal;index"`
	StrategyID      int64      `gorm:"column:id_estrategia"`
	InvestorID      int64      `gorm:"column:id_inversionista;index"`
	Ticker          string     `gorm:"column:ticker"`
	Direccion       string     `gorm:"column:direccion"`
	PrecioEntrada   float64    `gorm:"column:precio_entrada"`
	Cantidad        float64    `gorm:"column:cantidad"`
	Apalancamiento  float64    `gorm:"column:apalancamiento"`
	StopLoss        float64    `gorm:"column:stop_loss"`
	TakeProfit      float64    `gorm:"column:take_profit"`
	FechaApertura   time.Time  `gorm:"column:fecha_apertura"`
	FechaCierre     *time.Time `gorm:"column:fecha_cierre"`
	PrecioCierre    *float64   `gorm:"column:precio_cierre"`
	Resultado       *float64   `gorm:"column:resultado"`
	MotivoCierre    *string    `gorm:"column:motivo_cierre"`
	Estado          string     `gorm:"column:estado;index"`
	ParentID        *int64     `gorm:"column:id_operacion_padre"`
	CandleApertura  int64      `gorm:"column:id_vela_apertura"`
	CandleCierre    *int64     `gorm:"column:id_vela_cierre"`
	PrecioMaximo    float64    `gorm:"column:precio_maximo"`
	PrecioMinimo    float64    `gorm:"column:precio_minimo"`
	CapitalRiesgo   float64    `gorm:"column:capital_riesgo_usado"`
	ExposicionTotal float64    `gorm:"column:exposicion_total"`
	StopLossPct     float64    `gorm:"column:stop_loss_pct"`
	TakeProfitPct   float64    `gorm:"column:take_profit_pct"`
	NumeroEntradas  int        `gorm:"column:numero_entradas"`
	DuracionMinutos *float64   `gorm:"column:duracion_minutos"`
	PygNoRealizado  *float64   `gorm:"column:pyg_no_realizado"`
}

func (OperationModel) TableName() string { return "operaciones_simuladas" }

func toOperationModel(op *domain.Operation) OperationModel {
	m := OperationModel{
		ID:              op.ID,
		SignalID:        op.SignalID,
		StrategyID:      op.StrategyID,
		InvestorID:      op.InvestorID,
		Ticker:          op.Ticker,
		Direccion:       string(op.Side),
		PrecioEntrada:   op.EntryPrice,
		Cantidad:        op.Quantity,
		Apalancamiento:  op.Leverage,
		StopLoss:        op.StopLoss,
		TakeProfit:      op.TakeProfit,
		FechaApertura:   op.OpenedAt,
		Estado:          string(op.Status),
		ParentID:        op.ParentID,
		CandleApertura:  op.OpeningCandleID,
		PrecioMaximo:    op.PeakPrice,
		PrecioMinimo:    op.TroughPrice,
		CapitalRiesgo:   op.RiskCapitalUsed,
		ExposicionTotal: op.TotalExposure,
		StopLossPct:     op.StopLossPct,
		TakeProfitPct:   op.TakeProfitPct,
		NumeroEntradas:  op.EntryCount,
	}
	if !op.ClosedAt.IsZero() {
		closedAt := op.ClosedAt
		closePrice := op.ClosePrice
		result := op.Result
		reason := op.CloseReason
		duration := op.DurationMinutes
		m.FechaCierre = &closedAt
		m.PrecioCierre = &closePrice
		m.Resultado = &result
		m.MotivoCierre = &reason
		m.DuracionMinutos = &duration
	}
	if op.ClosingCandleID != 0 {
		candleID := op.ClosingCandleID
		m.CandleCierre = &candleID
	}
	return m
}

type SimEventModel struct {
	ID                int64     `gorm:"column:id_log;primaryKey;autoIncrement"`
	Timestamp         time.Time `gorm:"column:timestamp_evento;index"`
	InvestorID        int64     `gorm:"column:id_inversionista;index"`
	SignalID          int64     `gorm:"column:id_senal"`
	OperationID       int64     `gorm:"column:id_operacion"`
	ParentOperationID int64     `gorm:"column:id_operacion_padre"`
	StrategyID        int64     `gorm:"column:id_estrategia"`
	Ticker            string    `gorm:"column:ticker"`
	Direccion         string    `gorm:"column:direccion"`
	TipoEvento        string    `gorm:"column:tipo_evento;index"`
	Detalle           string    `gorm:"column:detalle"`
	MotivoRechazo     string    `gorm:"column:motivo_rechazo"`

	CapitalAntes   float64 `gorm:"column:capital_antes"`
	CapitalDespues float64 `gorm:"column:capital_despues"`

	PrecioSenal   float64 `gorm:"column:precio_senal"`
	StopLoss      float64 `gorm:"column:stop_loss"`
	TakeProfit    float64 `gorm:"column:take_profit"`
	Cantidad      float64 `gorm:"column:cantidad"`
	PrecioEntrada float64 `gorm:"column:precio_entrada"`
	PrecioCierre  float64 `gorm:"column:precio_cierre"`
	Resultado     float64 `gorm:"column:resultado"`
	MotivoCierre  string  `gorm:"column:motivo_cierre"`

	DuracionMinutos float64        `gorm:"column:duracion_minutos"`
	StopLossPct     float64        `gorm:"column:stop_loss_pct"`
	TakeProfitPct   float64        `gorm:"column:take_profit_pct"`
	PrecioMaximo    float64        `gorm:"column:precio_maximo"`
	PrecioMinimo    float64        `gorm:"column:precio_minimo"`
	NumeroSecuencia int            `gorm:"column:numero_secuencia"`
	CandleApertura  int64          `gorm:"column:id_vela_apertura"`
	CandleCierre    int64          `gorm:"column:id_vela_cierre"`
	Contexto        datatypes.JSON `gorm:"column:contexto"`
}

func (SimEventModel) TableName() string { return "log_operaciones_simuladas" }

func toSimEventModel(ev domain.SimEvent) SimEventModel {
	return SimEventModel{
		Timestamp:         ev.Timestamp,
		InvestorID:        ev.InvestorID,
		SignalID:          ev.SignalID,
		OperationID:       ev.OperationID,
		ParentOperationID: ev.ParentOperationID,
		StrategyID:        ev.StrategyID,
		Ticker:            ev.Ticker,
		Direccion:         string(ev.Side),
		TipoEvento:        string(ev.Type),
		Detalle:           ev.Detail,
		MotivoRechazo:     ev.RejectReason,
		CapitalAntes:      ev.CapitalBefore,
		CapitalDespues:    ev.CapitalAfter,
		PrecioSenal:       ev.SignalPrice,
		StopLoss:          ev.StopLoss,
		TakeProfit:        ev.TakeProfit,
		Cantidad:          ev.Quantity,
		PrecioEntrada:     ev.EntryPrice,
		PrecioCierre:      ev.ClosePrice,
		Resultado:         ev.Result,
		MotivoCierre:      ev.CloseReason,
		DuracionMinutos:   ev.DurationMinutes,
		StopLossPct:       ev.StopLossPct,
		TakeProfitPct:     ev.TakeProfitPct,
		PrecioMaximo:      ev.PeakPrice,
		PrecioMinimo:      ev.TroughPrice,
		NumeroSecuencia:   ev.SequenceNumber,
		CandleApertura:    ev.OpeningCandleID,
		CandleCierre:      ev.ClosingCandleID,
		Contexto:          datatypes.JSON(ev.Context),
	}
}
