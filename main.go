package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"GoDocsAI/app/configs"
	"GoDocsAI/app/index"
	"GoDocsAI/app/models"
	"GoDocsAI/app/rag"
	"GoDocsAI/app/restclient"
	"GoDocsAI/app/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ no .env file found, relying on environment")
	}

	var (
		userID   = flag.String("user", "default", "user namespace for documents and queries")
		docFile  = flag.String("ingest", "", "path of a text file to ingest")
		docID    = flag.String("doc", "", "document id (defaults to the file name)")
		question = flag.String("ask", "", "question to answer from the user's documents")
		scope    = flag.String("scope", "", "restrict the question to one document id")
		topK     = flag.Int("k", 0, "chunks to retrieve per question (default from config)")
		list     = flag.Bool("list", false, "list the user's documents")
		remove   = flag.String("delete", "", "document id to delete")
	)
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	config, err := configs.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("❌ Error loading config: %v", err)
	}

	store, err := storage.NewSQLiteStorage(config.Storage.Path)
	if err != nil {
		log.Fatalf("❌ Error opening storage: %v", err)
	}
	defer store.Close()

	var idx index.Interface
	switch config.Index.Backend {
	case "qdrant":
		qdrantIdx, err := index.NewQdrantIndex(config.Index.Host, config.Index.Port,
			config.LLM.EmbeddingsModel, config.Index.VectorSize)
		if err != nil {
			log.Fatalf("❌ Error connecting to qdrant: %v", err)
		}
		defer qdrantIdx.Close()
		idx = qdrantIdx
	default:
		idx = index.NewMemoryIndex(config.LLM.EmbeddingsModel)
	}

	headers := map[string]string{}
	if config.LLM.APIKey != "" {
		headers["Authorization"] = "Bearer " + config.LLM.APIKey
	}
	rest := restclient.NewRestClient(config.LLM.BaseURL, headers)
	llm := models.NewLLMClient(rest, config.LLM.Model, config.LLM.EmbeddingsModel,
		models.RetryPolicy{
			MaxAttempts: config.LLM.RetryAttempts,
			BaseDelay:   config.LLM.RetryBaseDelay.Duration,
			MaxDelay:    config.LLM.RetryMaxDelay.Duration,
		},
		config.LLM.Timeout.Duration, config.LLM.BatchSize)

	service, err := rag.NewService(llm, llm, idx, store, rag.Options{
		ChunkSize:        config.Pipeline.ChunkSize,
		ChunkOverlap:     config.Pipeline.ChunkOverlap,
		TopK:             config.Pipeline.TopK,
		MaxContextLength: config.Pipeline.MaxContextLength,
	})
	if err != nil {
		log.Fatalf("❌ Error wiring pipeline: %v", err)
	}

	ctx := context.Background()

	if *docFile != "" {
		raw, err := os.ReadFile(*docFile)
		if err != nil {
			log.Fatalf("❌ Error reading %s: %v", *docFile, err)
		}
		id := *docID
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(*docFile), filepath.Ext(*docFile))
		}
		doc, err := service.IngestDocument(ctx, *userID, id, filepath.Base(*docFile), string(raw))
		if err != nil {
			log.Fatalf("❌ Error ingesting %s: %v", *docFile, err)
		}
		log.Printf("✅ Document %s is %s (%d chunks)", doc.ID, doc.Status, doc.Chunks)
	}

	if *remove != "" {
		if err = service.DeleteDocument(ctx, *userID, *remove); err != nil {
			log.Fatalf("❌ Error deleting %s: %v", *remove, err)
		}
		log.Printf("✅ Document %s deleted", *remove)
	}

	if *list {
		docs, err := service.ListDocuments(ctx, *userID)
		if err != nil {
			log.Fatalf("❌ Error listing documents: %v", err)
		}
		for _, d := range docs {
			line := fmt.Sprintf("%s\t%s\t%d chunks", d.ID, d.Status, d.Chunks)
			if d.Reason != "" {
				line += "\t" + d.Reason
			}
			fmt.Println(line)
		}
	}

	if *question != "" {
		answer, err := service.AnswerQuery(ctx, *userID, *question, *topK, *scope)
		if err != nil {
			log.Fatalf("❌ Error answering query: %v", err)
		}
		fmt.Println(answer.Text)
		if answer.ContextUsed {
			fmt.Println()
			for _, c := range answer.Citations {
				fmt.Printf("  [%s #%d]\n", c.DocumentID, c.ChunkIndex)
			}
		}
	}

	if *docFile == "" && *question == "" && *remove == "" && !*list {
		flag.Usage()
	}
}
