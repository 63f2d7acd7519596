package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/arcade-progress/internal/kafka"
)

var playerPrefixes = []string{
	"Pixel", "Joystick", "Arcade", "Retro", "Bit", "Combo", "Turbo", "Glitch", "Sprite", "Coin",
	"Ghost", "Laser", "Neon", "Boss", "Level", "Bonus", "Chip", "Warp", "Blip", "Token",
}

func playerID(idx int) string {
	prefix := playerPrefixes[idx%len(playerPrefixes)]
	return fmt.Sprintf("%s%d", prefix, idx/len(playerPrefixes)+1)
}

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "arcade-sessions", "Kafka topic")
	totalPlayers := flag.Int("players", 200, "Number of simulated players")
	sessionsPerSecond := flag.Int("rate", 20, "Sessions per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *totalPlayers <= 0 || *sessionsPerSecond <= 0 {
		logger.Error("players and rate must be positive")
		os.Exit(2)
	}

	fmt.Println("Arcade session producer")
	fmt.Printf("  Brokers:      %s\n", *brokers)
	fmt.Printf("  Topic:        %s\n", *topic)
	fmt.Printf("  Players:      %d\n", *totalPlayers)
	fmt.Printf("  Sessions/sec: %d\n", *sessionsPerSecond)
	fmt.Println()

	producer, err := kafka.NewSyncProducer(strings.Split(*brokers, ","))
	if err != nil {
		logger.Error("failed to create producer", "error", err)
		os.Exit(1)
	}
	publisher := kafka.NewSessionPublisher(producer, *topic, logger)
	defer publisher.Close()

	rng := rand.New(rand.NewSource(*seed))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(*sessionsPerSecond))
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	var sent, failed int64
	report := func() {
		fmt.Printf("[%s] Sent: %d | Errors: %d\n", time.Now().Format("15:04:05"), sent, failed)
	}

	for {
		select {
		case <-sigChan:
			fmt.Println("\nShutting down...")
			report()
			return

		case <-deadline:
			fmt.Println("\nDuration reached, shutting down...")
			report()
			return

		case <-ticker.C:
			session := kafka.RandomSession(rng, playerID(rng.Intn(*totalPlayers)))
			if err := publisher.Publish(session); err != nil {
				failed++
				logger.Warn("failed to publish session", "player_id", session.PlayerID, "error", err)
				continue
			}
			sent++

		case <-statsTicker.C:
			report()
		}
	}
}
