package alerts

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/hibiken/asynq"

	"github.com/renthavenhq/renthaven/internal/db"
)

var (
	client *asynq.Client
	server *asynq.Server
)

// Init starts the Asynq server and initializes a shared client.
func Init() {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		if host := os.Getenv("REDIS_HOST"); host != "" {
			port := os.Getenv("REDIS_PORT")
			if port == "" {
				port = "6379"
			}
			redisAddr = host + ":" + port
		} else {
			redisAddr = "redis:6379"
			if os.Getenv("RUN_LOCAL") == "true" {
				redisAddr = "127.0.0.1:6379"
			}
		}
	}

	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client = asynq.NewClient(opts)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskNotify, handleNotify)
	mux.HandleFunc(TaskAdminAlert, handleAdminAlert)

	server = asynq.NewServer(opts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			"notifications": 10,
			"alerts":        5,
		},
	})
	go func() {
		if err := server.Run(mux); err != nil {
			log.Printf("Asynq server stopped: %v", err)
		}
	}()

	log.Printf("Asynq initialized (addr=%s)", redisAddr)
}

// Close releases client and stops server.
func Close() {
	if client != nil {
		_ = client.Close()
	}
	if server != nil {
		server.Shutdown()
	}
}

// handleNotify writes the in-app notification row. Delivery is
// at-least-once; a replayed task inserts a duplicate row, which is
// acceptable for notifications and never touches money.
func handleNotify(ctx context.Context, t *asynq.Task) error {
	var p NotifyPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	var entity, sender any
	if p.EntityID != "" {
		entity = p.EntityID
	}
	if p.SenderID != "" {
		sender = p.SenderID
	}
	_, err := db.Conn.Exec(ctx,
		`INSERT INTO notifications (user_id, purpose, message, entity_id, sender_id)
         VALUES ($1, $2, $3, $4, $5)`,
		p.RecipientID, p.Purpose, p.Message, entity, sender,
	)
	if err != nil {
		log.Printf("[notify][ERROR] store failed: %v", err)
		return err
	}
	log.Printf("[notify] %s -> user=%s entity=%s", p.Purpose, p.RecipientID, p.EntityID)
	return nil
}

func handleAdminAlert(_ context.Context, t *asynq.Task) error {
	var p AdminAlertPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	log.Printf("[notify] AdminAlert severity=%s actor=%s: %s", p.Severity, p.ActorID, p.Message)
	return nil
}
