package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"dex-task-service/internal/events"
	"dex-task-service/internal/store"
)

// TradeService consumes trade events published by workers and folds them into
// per-task statistics.
type TradeService struct {
	Tasks  *store.TaskStore
	Reader *kafka.Reader
}

func NewTradeService(tasks *store.TaskStore, reader *kafka.Reader) *TradeService {
	return &TradeService{Tasks: tasks, Reader: reader}
}

func (s *TradeService) StartConsuming(ctx context.Context) {
	log.Println("TradeService starting to consume trade events...")
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Println("TradeService: context cancelled, stopping consumer.")
				return
			default:
				readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				msg, err := s.Reader.ReadMessage(readCtx)
				cancel()

				if errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				if errors.Is(err, context.Canceled) {
					log.Println("TradeService: read context cancelled.")
					return
				}
				if errors.Is(err, io.EOF) {
					log.Println("TradeService: Kafka reader closed (EOF), stopping consumption.")
					return
				}
				if err != nil {
					log.Printf("TradeService: error reading message: %v", err)
					time.Sleep(1 * time.Second)
					continue
				}
				s.handleMessage(msg.Value)
			}
		}
	}()
}

func (s *TradeService) handleMessage(value []byte) {
	var payload events.TradeExecutedPayload
	if err := json.Unmarshal(value, &payload); err != nil {
		log.Printf("TradeService: error unmarshalling trade payload: %v. Value: %s", err, string(value))
		return
	}
	if payload.TaskID == "" {
		log.Printf("TradeService: dropping trade event without task id: %s", string(value))
		return
	}
	if err := s.Tasks.RecordTrade(payload.TaskID, payload.Amount, payload.Success); err != nil {
		log.Printf("TradeService: record trade for task %s: %v", payload.TaskID, err)
		return
	}
	log.Printf("TradeService: recorded %s trade for task %s (success=%v)", payload.TradeType, payload.TaskID, payload.Success)
}

func (s *TradeService) Close() {
	if s.Reader != nil {
		log.Println("TradeService: Closing Kafka reader.")
		_ = s.Reader.Close()
	}
}
