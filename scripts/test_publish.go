//go:build ignore
// +build ignore

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	requestStream = "stream:siting:scenario"
	doneStream    = "stream:siting:done"
)

type ScenarioRequestEvent struct {
	RequestID       uuid.UUID `json:"request_id"`
	Region          string    `json:"region"`
	Modes           []string  `json:"modes"`
	TimeBudgetMin   float64   `json:"time_budget_min"`
	KValues         []int     `json:"k_values"`
	Strategy        string    `json:"strategy,omitempty"`
	EquityThreshold *float64  `json:"equity_threshold,omitempty"`
}

func main() {
	redisAddr := flag.String("redis", "localhost:6379", "Redis address for streams")
	region := flag.String("region", "rural_area", "region name from the coverage plan")
	modes := flag.String("modes", "walk,drive", "comma separated travel modes")
	budget := flag.Float64("budget", 15, "time budget, minutes")
	strategy := flag.String("strategy", "auto", "exact, greedy or auto")
	equity := flag.Float64("equity", -1, "equity threshold in [0,1]; negative = off")
	wait := flag.Duration("wait", 2*time.Minute, "how long to wait for the result")
	flag.Parse()

	client := redis.NewClient(&redis.Options{
		Addr: *redisAddr,
	})
	defer client.Close()

	ctx := context.Background()

	// Проверка подключения
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	event := ScenarioRequestEvent{
		RequestID:     uuid.New(),
		Region:        *region,
		Modes:         strings.Split(*modes, ","),
		TimeBudgetMin: *budget,
		KValues:       []int{5, 10, 15, 20},
		Strategy:      *strategy,
	}
	if *equity >= 0 {
		event.EquityThreshold = equity
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Fatalf("Failed to marshal event: %v", err)
	}

	// Запоминаем хвост стрима ответов до публикации
	lastID := "$"
	if msgs, err := client.XRevRangeN(ctx, doneStream, "+", "-", 1).Result(); err == nil && len(msgs) > 0 {
		lastID = msgs[0].ID
	}

	result, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: requestStream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		log.Fatalf("Failed to publish event: %v", err)
	}

	fmt.Printf("Event published\n")
	fmt.Printf("   Stream: %s\n", requestStream)
	fmt.Printf("   Message ID: %s\n", result)
	fmt.Printf("   Request ID: %s\n", event.RequestID)
	fmt.Printf("   Region: %s, modes %v, budget %.0f min\n", event.Region, event.Modes, event.TimeBudgetMin)
	fmt.Printf("\nWaiting for response in %s...\n", doneStream)

	deadline := time.Now().Add(*wait)
	for time.Now().Before(deadline) {
		results, err := client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{doneStream, lastID},
			Count:   10,
			Block:   time.Second,
		}).Result()
		if err != nil {
			continue
		}

		for _, stream := range results {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				dataStr, ok := msg.Values["data"].(string)
				if !ok {
					continue
				}

				var response map[string]interface{}
				if err := json.Unmarshal([]byte(dataStr), &response); err != nil {
					continue
				}
				if response["request_id"] != event.RequestID.String() {
					continue
				}

				fmt.Printf("\nResponse received\n")
				prettyJSON, _ := json.MarshalIndent(response, "", "  ")
				fmt.Printf("%s\n", prettyJSON)
				return
			}
		}
	}
	fmt.Println("Timeout waiting for response")
}
