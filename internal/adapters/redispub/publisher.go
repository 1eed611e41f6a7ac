// Package redispub publica cada snapshot aplicado en Redis para otros consumidores:
// SET del último snapshot (con TTL) y PUBLISH en un canal pub/sub.
package redispub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	defaultChannel = "blackedge:snapshots"
	defaultKey     = "blackedge:snapshot:latest"
	defaultTTL     = 10 * time.Minute
)

// Config contiene la conexión y los nombres de clave/canal.
type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	Key      string
	TTL      time.Duration
}

// Publisher implementa ports.SnapshotPublisher.
type Publisher struct {
	rdb     *redis.Client
	channel string
	key     string
	ttl     time.Duration
}

// New crea el publisher y verifica la conexión con PING.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	p := newPublisher(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg)

	if err := p.rdb.Ping(ctx).Err(); err != nil {
		_ = p.rdb.Close()
		return nil, fmt.Errorf("redispub.New: ping %s: %w", cfg.Addr, err)
	}
	return p, nil
}

func newPublisher(rdb *redis.Client, cfg Config) *Publisher {
	p := &Publisher{rdb: rdb, channel: cfg.Channel, key: cfg.Key, ttl: cfg.TTL}
	if p.channel == "" {
		p.channel = defaultChannel
	}
	if p.key == "" {
		p.key = defaultKey
	}
	if p.ttl <= 0 {
		p.ttl = defaultTTL
	}
	return p
}

// PublishSnapshot guarda el snapshot como último conocido y lo difunde por el canal.
func (p *Publisher) PublishSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return nil
	}
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("redispub.PublishSnapshot: encode: %w", err)
	}

	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.key, payload, p.ttl)
		pipe.Publish(ctx, p.channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redispub.PublishSnapshot: seq %d: %w", snap.Seq, err)
	}
	return nil
}

// Close cierra la conexión.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}

// snapshotMessage es el formato publicado. Estable para consumidores externos.
type snapshotMessage struct {
	Seq       uint64          `json:"seq"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Signals   []signalMessage `json:"signals"`
}

type signalMessage struct {
	ID                string  `json:"id"`
	Question          string  `json:"question"`
	Market            string  `json:"market,omitempty"`
	URL               string  `json:"url,omitempty"`
	Recommendation    string  `json:"recommendation"`
	QuotedProbability float64 `json:"quotedProbability"`
	ModelProbability  float64 `json:"modelProbability"`
	EdgePct           float64 `json:"edgePct"`
	KellyFraction     float64 `json:"kellyFraction"`
	Volume24h         float64 `json:"volume24h"`
	Liquidity         float64 `json:"liquidity"`
	RiskTier          string  `json:"riskTier"`
	Trend             string  `json:"trend"`
	IsArbitrage       bool    `json:"isArbitrage"`
	ArbitrageNote     string  `json:"arbitrageNote,omitempty"`
}

// encodeSnapshot serializa el snapshot ya ordenado por recomendación.
func encodeSnapshot(snap *domain.Snapshot) ([]byte, error) {
	ranked := domain.Rank(snap.Signals)
	msg := snapshotMessage{
		Seq:       snap.Seq,
		Source:    string(snap.Source),
		FetchedAt: snap.FetchedAt.UTC(),
		Signals:   make([]signalMessage, 0, len(ranked)),
	}
	for _, sc := range ranked {
		s := sc.Signal
		msg.Signals = append(msg.Signals, signalMessage{
			ID:                s.ID,
			Question:          s.Question,
			Market:            s.Market,
			URL:               s.PlatformURL,
			Recommendation:    sc.Recommendation.String(),
			QuotedProbability: s.QuotedProbability,
			ModelProbability:  s.ModelProbability,
			EdgePct:           s.EdgePct,
			KellyFraction:     s.KellyFraction,
			Volume24h:         s.Volume24h,
			Liquidity:         s.Liquidity,
			RiskTier:          string(s.RiskTier),
			Trend:             string(s.Trend),
			IsArbitrage:       s.IsArbitrage,
			ArbitrageNote:     s.ArbitrageNote,
		})
	}
	return json.Marshal(msg)
}
