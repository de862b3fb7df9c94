// Package publish mirrors the latest run of every script into Consul's KV
// store so other machines can see what a batch produced.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	consul "github.com/hashicorp/consul/api"

	"github.com/metorial/runhistory/internal/models"
)

// LatestRun is the value stored under <prefix>/<file>/latest.
type LatestRun struct {
	File        string `json:"file"`
	Timestamp   string `json:"timestamp"`
	VersionFile string `json:"version_file"`
	GitCommit   string `json:"git_commit"`
	ReturnCode  int    `json:"returncode"`
	TimedOut    bool   `json:"timed_out"`
	Hostname    string `json:"hostname,omitempty"`
}

type ConsulPublisher struct {
	consulAddr string
	prefix     string
	hostname   string
	client     *consul.Client
}

func NewConsulPublisher(consulAddr, prefix, hostname string) (*ConsulPublisher, error) {
	config := consul.DefaultConfig()
	config.Address = consulAddr

	client, err := consul.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}

	return &ConsulPublisher{
		consulAddr: consulAddr,
		prefix:     prefix,
		hostname:   hostname,
		client:     client,
	}, nil
}

func (p *ConsulPublisher) Key(file string) string {
	return path.Join(p.prefix, file, "latest")
}

func (p *ConsulPublisher) Publish(ctx context.Context, result *models.RunResult, entry *models.IndexEntry) error {
	value, err := json.Marshal(LatestRun{
		File:        entry.File,
		Timestamp:   entry.Timestamp,
		VersionFile: entry.VersionFile,
		GitCommit:   entry.GitCommit,
		ReturnCode:  result.ReturnCode,
		TimedOut:    result.TimedOut,
		Hostname:    p.hostname,
	})
	if err != nil {
		return fmt.Errorf("encode latest run: %w", err)
	}

	pair := &consul.KVPair{Key: p.Key(entry.File), Value: value}
	if _, err := p.client.KV().Put(pair, (&consul.WriteOptions{}).WithContext(ctx)); err != nil {
		return fmt.Errorf("put %s: %w", pair.Key, err)
	}

	return nil
}

// Latest reads back the published run of file; nil when nothing was published.
func (p *ConsulPublisher) Latest(ctx context.Context, file string) (*LatestRun, error) {
	pair, _, err := p.client.KV().Get(p.Key(file), (&consul.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("query consul: %w", err)
	}
	if pair == nil {
		return nil, nil
	}

	var latest LatestRun
	if err := json.Unmarshal(pair.Value, &latest); err != nil {
		return nil, fmt.Errorf("decode latest run: %w", err)
	}

	return &latest, nil
}
