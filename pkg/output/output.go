package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/relaymetrics/relay-monitor/pkg/report"
	kafka "github.com/segmentio/kafka-go"
)

// Output appends every report as one JSON line to a file and, when
// configured, to a Kafka topic.
type Output struct {
	Path        string
	f           *os.File
	lock        sync.Mutex
	kafkaWriter *kafka.Writer
}

type KafkaConfig struct {
	Topic            string
	BootstrapServers []string
}

func checkFile(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("output path is empty")
	}
	dir := filepath.Dir(filePath)
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("could not create output directory %s: %v", dir, err)
	}
	info, err := os.Stat(filePath)
	if err == nil && info.IsDir() {
		return fmt.Errorf("output path %s is a directory", filePath)
	}
	return nil
}

// NewOutput opens the file at filePath for appending. An empty path writes to
// Kafka only; kafkaConfig may be nil.
func NewOutput(filePath string, kafkaConfig *KafkaConfig) (*Output, error) {
	output := &Output{
		Path: filePath,
	}

	if filePath != "" {
		err := checkFile(filePath)
		if err != nil {
			return nil, err
		}

		output.f, err = os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
	}

	if kafkaConfig != nil && len(kafkaConfig.BootstrapServers) > 0 {
		output.kafkaWriter = &kafka.Writer{
			Addr:       kafka.TCP(kafkaConfig.BootstrapServers...),
			Topic:      kafkaConfig.Topic,
			BatchBytes: 10 * 1024 * 1024, // 10MB
			BatchSize:  1,
		}
	}

	if output.f == nil && output.kafkaWriter == nil {
		return nil, fmt.Errorf("output has neither a path nor kafka brokers")
	}
	return output, nil
}

// PutReport writes the report as one entry keyed by its id.
func (o *Output) PutReport(ctx context.Context, r *report.Report) error {
	entry, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("could not encode report: %v", err)
	}
	return o.WriteEntry(ctx, []byte(r.ID), entry)
}

func (o *Output) WriteEntry(ctx context.Context, key, entry []byte) error {
	o.lock.Lock()
	defer o.lock.Unlock()

	if o.f != nil {
		_, err := o.f.Write(append(entry, byte('\n')))
		if err != nil {
			return err
		}
	}
	if o.kafkaWriter != nil {
		err := o.kafkaWriter.WriteMessages(ctx, kafka.Message{Key: key, Value: entry})
		if err != nil {
			return fmt.Errorf("could not write to kafka: %v", err)
		}
	}
	return nil
}

func (o *Output) Close() error {
	if o.kafkaWriter != nil {
		err := o.kafkaWriter.Close()
		if err != nil {
			return err
		}
	}
	if o.f != nil {
		return o.f.Close()
	}
	return nil
}
