package workers

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"

	"github.com/Roshan1299/67-Royale/models"
	"github.com/Roshan1299/67-Royale/ratelimit"
)

const (
	// Tickets past the pairing staleness window are already invisible to the
	// scan; after this they are garbage.
	ticketMaxAge = 10 * time.Minute

	// Expired or abandoned duels remain fetchable for a day, then go.
	duelRetention = 24 * time.Hour
)

// Janitor is pure garbage collection. Lifecycle decisions (duel expiry,
// challenge expiry) stay lazy-on-access; this worker only reclaims rows and
// limiter buckets nothing will ever read again.
type Janitor struct {
	DB      *gorm.DB
	Limiter *ratelimit.Limiter

	scheduler gocron.Scheduler
}

func NewJanitor(db *gorm.DB, limiter *ratelimit.Limiter) *Janitor {
	return &Janitor{DB: db, Limiter: limiter}
}

func (j *Janitor) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	j.scheduler = sched

	if _, err := sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(j.sweep),
	); err != nil {
		return err
	}
	sched.Start()
	log.Printf("[JANITOR] started, sweeping every minute")
	return nil
}

func (j *Janitor) Stop() {
	if j.scheduler != nil {
		if err := j.scheduler.Shutdown(); err != nil {
			log.Printf("[JANITOR] shutdown: %v", err)
		}
	}
}

func (j *Janitor) sweep() {
	now := time.Now()

	res := j.DB.Where("created_at < ?", now.Add(-ticketMaxAge)).
		Delete(&models.MatchmakingTicket{})
	if res.Error != nil {
		log.Printf("[JANITOR] ticket sweep: %v", res.Error)
	} else if res.RowsAffected > 0 {
		log.Printf("[JANITOR] removed %d dead tickets", res.RowsAffected)
	}

	// Duels that never completed and fell off every client's radar. Expiry is
	// lazy-on-access, so an abandoned duel nobody re-reads can still sit in
	// waiting or active; their players go with them.
	var dead []models.Duel
	if err := j.DB.Select("id").
		Where("status IN ? AND expires_at < ?",
			[]models.DuelStatus{models.DuelWaiting, models.DuelActive, models.DuelExpired},
			now.Add(-duelRetention)).
		Find(&dead).Error; err != nil {
		log.Printf("[JANITOR] duel scan: %v", err)
		return
	}
	if len(dead) > 0 {
		ids := make([]string, len(dead))
		for i, d := range dead {
			ids[i] = d.ID
		}
		if err := j.DB.Where("duel_id IN ?", ids).Delete(&models.DuelPlayer{}).Error; err != nil {
			log.Printf("[JANITOR] duel player sweep: %v", err)
			return
		}
		if err := j.DB.Where("id IN ?", ids).Delete(&models.Duel{}).Error; err != nil {
			log.Printf("[JANITOR] duel sweep: %v", err)
			return
		}
		log.Printf("[JANITOR] removed %d abandoned duels", len(ids))
	}

	j.Limiter.Sweep(ticketMaxAge)
}
