package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dasmlab/multiling/pkg/requestid"
	"github.com/dasmlab/multiling/pkg/server"
)

var (
	serverAddr = flag.String("addr", "localhost:50051", "gRPC server address")
	textFile   = flag.String("file", "", "Path to text file to translate")
	text       = flag.String("text", "", "Text to translate (if file not provided)")
	targets    = flag.String("targets", "", "Comma-separated target languages (default: server defaults)")
	single     = flag.String("single", "", "Translate into this language only")
	analyze    = flag.Bool("analyze", false, "Request a combined analysis of the translations")
	individual = flag.Bool("individual", false, "Request a per-language analysis")
	question   = flag.Bool("question", false, "Ask each translation as a question and back-translate the answers")
	timeout    = flag.Duration("timeout", 2*time.Minute, "Request timeout")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	// Read text to translate
	var input string
	if *textFile != "" {
		data, err := os.ReadFile(*textFile)
		if err != nil {
			logger.WithError(err).Fatalf("Failed to read file: %s", *textFile)
		}
		input = string(data)
	} else if *text != "" {
		input = *text
	} else {
		logger.Fatal("Either -file or -text must be provided")
	}

	fields := map[string]any{
		"text":                input,
		"analyze":             *analyze,
		"individual_analysis": *individual,
		"question_response":   *question,
	}
	if *single != "" {
		fields["single_language"] = *single
	}
	if *targets != "" {
		var langs []any
		for _, t := range strings.Split(*targets, ",") {
			if t = strings.TrimSpace(t); t != "" {
				langs = append(langs, t)
			}
		}
		fields["target_langs"] = langs
	}

	req, err := structpb.NewStruct(fields)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build request")
	}

	reqID := requestid.New()
	logger.WithFields(logrus.Fields{
		"server":      *serverAddr,
		"request_id":  reqID,
		"text_length": len(input),
	}).Info("Connecting to multiling server...")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := grpc.DialContext(ctx, *serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to server")
	}
	defer conn.Close()

	ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", reqID)

	startTime := time.Now()
	resp := new(structpb.Struct)
	if err := conn.Invoke(ctx, server.TranslateMethod, req, resp); err != nil {
		logger.WithError(err).Fatal("Translate failed")
	}
	logger.WithField("duration", time.Since(startTime).String()).Info("Translate completed")

	result := resp.AsMap()
	fmt.Printf("Detected source language: %v\n", result["detected_source_lang"])
	printSection("Translations", result["translations"])
	if analysis, ok := result["analysis"].(string); ok {
		fmt.Printf("\n=== Analysis ===\n%s\n", analysis)
	}
	printSection("Individual analyses", result["individual_analyses"])
	printSection("Question responses", result["question_responses"])
	printSection("English responses", result["english_responses"])
}

func printSection(title string, v any) {
	m, ok := v.(map[string]any)
	if !ok {
		return
	}

	fmt.Printf("\n=== %s ===\n", title)
	langs := make([]string, 0, len(m))
	for lang := range m {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		value, isString := m[lang].(string)
		if !isString {
			data, _ := json.Marshal(m[lang])
			value = string(data)
		}
		fmt.Printf("[%s] %s\n", lang, value)
	}
}
