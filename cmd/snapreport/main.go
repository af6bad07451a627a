package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/snapline/snapagent/agent"
)

func main() {
	log.SetFlags(log.LstdFlags | log.LUTC)

	metricsJSONFile := flag.String("json", "activity.json", "File to read activity metrics from")
	reportFile := flag.String("out", "activity.png", "File to output activity chart image")
	flag.Parse()

	data, err := os.ReadFile(*metricsJSONFile)
	if err != nil {
		log.Fatalf("%sfailed to read activity metrics: %v", agent.ErrorLogPrefix, err)
	}
	var metrics agent.ActivityMetrics
	if err := json.Unmarshal(data, &metrics); err != nil {
		log.Fatalf("%sfailed to unmarshal activity metrics: %v", agent.ErrorLogPrefix, err)
	}

	png, err := agent.RenderActivityReport(metrics)
	if err != nil {
		log.Fatalf("%sfailed to render report: %v", agent.ErrorLogPrefix, err)
	}
	if err := os.WriteFile(*reportFile, png, 0644); err != nil {
		log.Fatalf("%sfailed to write report file: %v", agent.ErrorLogPrefix, err)
	}
	log.Println("report file wrote: " + *reportFile)
}
