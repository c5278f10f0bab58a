// Benchmark tool for testing Kestrel against labeled verification data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/verifications.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled verification attempts (with fraud labels)
//   2. Sends each attempt to Kestrel for evaluation
//   3. Compares Kestrel's outcome (flagged vs approved) with actual labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns (header names are case-insensitive):
//   userid, industry, ocrconfidence, fraudscore, faceconfidence,
//   livenessscore, antispoofing (0/1), deepfake (0/1), isfraud (0/1)
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledVerification represents a row from the benchmark dataset
type LabeledVerification struct {
	UserID         string
	Industry       string
	OCRConfidence  float64
	FraudScore     float64
	FaceConfidence float64
	LivenessScore  float64
	AntiSpoofing   bool
	Deepfake       bool
	IsFraud        bool
}

// EvaluateRequest is the Kestrel API request format
type EvaluateRequest struct {
	VerificationID string  `json:"verificationId"`
	UserID         string  `json:"userId"`
	Industry       string  `json:"industry"`
	Factors        Factors `json:"factors"`
}

type Factors struct {
	Document  *DocumentSignal  `json:"document"`
	Face      *FaceSignal      `json:"face"`
	Synthetic *SyntheticSignal `json:"synthetic,omitempty"`
}

type DocumentSignal struct {
	IsValid       bool          `json:"isValid"`
	Confidence    float64       `json:"confidence"`
	FraudScore    float64       `json:"fraudScore"`
	ExtractedData ExtractedData `json:"extractedData"`
}

type ExtractedData struct {
	DocumentType   string `json:"documentType,omitempty"`
	DocumentNumber string `json:"documentNumber,omitempty"`
	Name           string `json:"name,omitempty"`
	DateOfBirth    string `json:"dateOfBirth,omitempty"`
	ExpiryDate     string `json:"expiryDate,omitempty"`
}

type FaceSignal struct {
	IsMatch            bool    `json:"isMatch"`
	Confidence         float64 `json:"confidence"`
	LivenessScore      float64 `json:"livenessScore"`
	IsLive             bool    `json:"isLive"`
	AntiSpoofingPassed bool    `json:"antiSpoofingPassed"`
}

type SyntheticSignal struct {
	DeepfakeDetected bool `json:"deepfakeDetected"`
}

// EvaluateResponse is the subset of Kestrel's response the benchmark needs
type EvaluateResponse struct {
	Decision struct {
		Outcome   string `json:"outcome"`
		RiskScore struct {
			TrustScore int    `json:"trustScore"`
			RiskTier   string `json:"riskTier"`
		} `json:"riskScore"`
	} `json:"decision"`
	Alerts []struct {
		AlertType string `json:"alertType"`
		Severity  string `json:"severity"`
	} `json:"alerts"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Fraud flagged (rejected or manual review)
	FalsePositives int64 // Legitimate user flagged
	TrueNegatives  int64 // Legitimate user approved
	FalseNegatives int64 // Fraud approved (missed fraud!)

	TotalProcessed int64
	TotalFraud     int64
	TotalNonFraud  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled verification CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	industry := flag.String("industry", "FINTECH", "Default industry when CSV omits one")
	limit := flag.Int("limit", 10000, "Maximum verifications to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	fraudOnly := flag.Bool("fraud-only", false, "Only test fraud verifications")
	sampleRate := flag.Float64("sample", 1.0, "Sample rate for non-fraud (0.0-1.0)")
	verbose := flag.Bool("verbose", false, "Print each verification result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/verifications.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║       KESTREL BENCHMARK - Identity Fraud Detection            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Kestrel URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Industry:    %s\n", *industry)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Fraud Only:  %v\n", *fraudOnly)
	fmt.Printf("Sample Rate: %.2f\n", *sampleRate)
	fmt.Println()

	// Check Kestrel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  cd kestrel && go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	// Read labeled data
	fmt.Printf("\nReading verification data from %s...\n", *csvPath)
	verifications, err := readVerificationCSV(*csvPath, *industry, *limit, *fraudOnly, *sampleRate)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d verifications\n", len(verifications))

	// Count fraud vs non-fraud
	fraudCount := 0
	for _, v := range verifications {
		if v.IsFraud {
			fraudCount++
		}
	}
	fmt.Printf("  - Fraud:     %d (%.2f%%)\n", fraudCount, 100*float64(fraudCount)/float64(len(verifications)))
	fmt.Printf("  - Non-fraud: %d (%.2f%%)\n", len(verifications)-fraudCount, 100*float64(len(verifications)-fraudCount)/float64(len(verifications)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(verifications, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readVerificationCSV(path, defaultIndustry string, limit int, fraudOnly bool, sampleRate float64) ([]LabeledVerification, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(col)] = i
	}

	get := func(record []string, col string) string {
		idx, ok := colIndex[col]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}

	var verifications []LabeledVerification
	sampleCounter := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		isFraud := get(record, "isfraud") == "1"

		// Apply filters
		if fraudOnly && !isFraud {
			continue
		}

		// Sample non-fraud verifications
		if !isFraud && sampleRate < 1.0 {
			sampleCounter++
			if float64(sampleCounter%100)/100.0 >= sampleRate {
				continue
			}
		}

		ocrConfidence, _ := strconv.ParseFloat(get(record, "ocrconfidence"), 64)
		fraudScore, _ := strconv.ParseFloat(get(record, "fraudscore"), 64)
		faceConfidence, _ := strconv.ParseFloat(get(record, "faceconfidence"), 64)
		livenessScore, _ := strconv.ParseFloat(get(record, "livenessscore"), 64)

		industry := get(record, "industry")
		if industry == "" {
			industry = defaultIndustry
		}

		v := LabeledVerification{
			UserID:         get(record, "userid"),
			Industry:       industry,
			OCRConfidence:  ocrConfidence,
			FraudScore:     fraudScore,
			FaceConfidence: faceConfidence,
			LivenessScore:  livenessScore,
			AntiSpoofing:   get(record, "antispoofing") == "1",
			Deepfake:       get(record, "deepfake") == "1",
			IsFraud:        isFraud,
		}

		verifications = append(verifications, v)

		if limit > 0 && len(verifications) >= limit {
			break
		}
	}

	return verifications, nil
}

func runBenchmark(verifications []LabeledVerification, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan LabeledVerification, 100)
	var wg sync.WaitGroup
	var seq int64

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for v := range work {
				n := atomic.AddInt64(&seq, 1)
				start := time.Now()
				result, err := evaluateVerification(client, baseURL, tenantID, v, n)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", v.UserID, err)
					}
					continue
				}

				// Track actual labels
				if v.IsFraud {
					atomic.AddInt64(&metrics.TotalFraud, 1)
				} else {
					atomic.AddInt64(&metrics.TotalNonFraud, 1)
				}

				// Calculate confusion matrix: anything short of an
				// auto-approval counts as flagged
				predicted := result.Decision.Outcome != "APPROVED"
				actual := v.IsFraud

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					name := v.UserID
					if len(name) > 10 {
						name = name[:10]
					}
					fmt.Printf("%s %-10s | Liveness: %5.1f | Deepfake: %-5v | Fraud: %-5v | Kestrel: %-13s (trust %3d, %s)\n",
						status,
						name,
						v.LivenessScore,
						v.Deepfake,
						v.IsFraud,
						result.Decision.Outcome,
						result.Decision.RiskScore.TrustScore,
						result.Decision.RiskScore.RiskTier,
					)
				}
			}
		}()
	}

	// Send work
	for _, v := range verifications {
		work <- v
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func evaluateVerification(client *http.Client, baseURL, tenantID string, v LabeledVerification, seq int64) (*EvaluateResponse, error) {
	// Build request matching Kestrel's expected format
	req := EvaluateRequest{
		VerificationID: fmt.Sprintf("bench-%d", seq),
		UserID:         v.UserID,
		Industry:       v.Industry,
		Factors: Factors{
			Document: &DocumentSignal{
				IsValid:    true,
				Confidence: v.OCRConfidence,
				FraudScore: v.FraudScore,
				ExtractedData: ExtractedData{
					DocumentType:   "passport",
					DocumentNumber: fmt.Sprintf("BM%07d", seq),
					Name:           "Benchmark Subject",
					DateOfBirth:    "1990-01-01",
					ExpiryDate:     "2032-01-01",
				},
			},
			Face: &FaceSignal{
				IsMatch:            true,
				Confidence:         v.FaceConfidence,
				LivenessScore:      v.LivenessScore,
				IsLive:             v.LivenessScore >= 50,
				AntiSpoofingPassed: v.AntiSpoofing,
			},
			Synthetic: &SyntheticSignal{
				DeepfakeDetected: v.Deepfake,
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Printf("   Total Non-Fraud:  %d\n", m.TotalNonFraud)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                  FLAGGED     APPROVED")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          NF  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged, how many were actual fraud)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of fraud, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalFraud > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalFraud) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalFraud) * 100
		fmt.Printf("   Fraud Flagged:     %d / %d (%.2f%%)\n", m.TruePositives, m.TotalFraud, detectionRate)
		fmt.Printf("   Fraud Missed:      %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalFraud, missRate)
	}
	if m.TotalNonFraud > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalNonFraud) * 100
		fmt.Printf("   False Flags:       %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalNonFraud, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f eval/sec\n", tps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most fraud")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some fraud")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant fraud being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most fraud is being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - flags are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false flags")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false flags")
	}

	fmt.Println()
}
