package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/tashakor/supportbot/internal/archive"
	"github.com/tashakor/supportbot/internal/assistant"
	"github.com/tashakor/supportbot/internal/config"
	"github.com/tashakor/supportbot/internal/conversation"
	"github.com/tashakor/supportbot/internal/openai"
)

const sessionKey = "console_session"

var exitWords = map[string]bool{
	"exit": true, "quit": true, "bye": true,
	"خروج": true, "خداحافظ": true,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := openai.ValidateKey(cfg.OpenAIAPIKey); err != nil {
		log.Fatalf("cannot start console chat: %v", err)
	}

	client, err := openai.NewClient(openai.Config{
		APIKey:           cfg.OpenAIAPIKey,
		BaseURL:          cfg.OpenAIBaseURL,
		Model:            cfg.ChatModel,
		Temperature:      cfg.ChatTemperature,
		MaxOutputTokens:  cfg.ChatMaxTokens,
		PresencePenalty:  0.1,
		FrequencyPenalty: 0.1,
		Timeout:          cfg.OpenAITimeout,
	})
	if err != nil {
		log.Fatalf("openai client init failed: %v", err)
	}

	gateway := assistant.New(client, conversation.NewStore(), archive.NopStore{}, assistant.Options{
		MaxHistory:     cfg.ChatMaxHistory,
		RequestTimeout: cfg.OpenAITimeout,
	})

	fmt.Printf("%s\n", gateway.BotName())
	fmt.Println("سلام! چطور می‌تونم کمکتون کنم؟")
	fmt.Println("(type exit to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitWords[strings.ToLower(line)] {
			fmt.Println("خداحافظ!")
			return
		}

		reply, err := gateway.Reply(context.Background(), sessionKey, line)
		if err != nil {
			var pe *openai.ProviderError
			if errors.As(err, &pe) {
				log.Printf("provider error: %v", pe)
			} else {
				log.Printf("reply error: %v", err)
			}
			fmt.Println("متاسفم، مشکلی پیش آمد. دوباره تلاش کنید.")
			continue
		}
		fmt.Println(reply)
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("stdin read error: %v", err)
	}
}
