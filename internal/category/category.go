// Package category проверяет открытые строковые категории и ведёт реестр известных категорий.
package category

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/shenikar/snap_and_send/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	minLength = 2
	maxLength = 40
)

var tagPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Normalize приводит категорию к каноническому виду и проверяет её
func Normalize(raw string) (string, error) {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if len(tag) < minLength || len(tag) > maxLength || !tagPattern.MatchString(tag) {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidCategory, raw)
	}
	return tag, nil
}

// Category - известная категория с описанием для подсказок в интерфейсе
type Category struct {
	ID          string `yaml:"id" json:"id"`
	Label       string `yaml:"label" json:"label"`
	Description string `yaml:"description" json:"description"`
	Custom      bool   `yaml:"-" json:"custom"`
}

// Registry - реестр известных категорий. Исключительность не навязывается:
// любая корректная категория допустима, реестр лишь запоминает новые.
type Registry interface {
	Known(ctx context.Context) ([]Category, error)
	Remember(ctx context.Context, tag string) error
}

// CustomStore хранит категории, появившиеся в отчётах
type CustomStore interface {
	Add(ctx context.Context, tag string) error
	Members(ctx context.Context) ([]string, error)
}

type file struct {
	Categories []Category `yaml:"categories"`
}

// Defaults - базовый набор категорий
func Defaults() []Category {
	return []Category{
		{ID: "pothole", Label: "Pothole", Description: "Road damage, potholes, cracks, or deteriorating pavement"},
		{ID: "garbage", Label: "Garbage", Description: "Illegal dumping, overflowing bins, litter, or waste accumulation"},
		{ID: "vandalism", Label: "Vandalism", Description: "Graffiti, property damage, broken windows, or defacement"},
		{ID: "streetlight", Label: "Streetlight", Description: "Broken or missing street lighting"},
		{ID: "drainage", Label: "Drainage", Description: "Flooding, blocked drains, sewage issues, or water accumulation"},
		{ID: "signage", Label: "Signage", Description: "Damaged, missing, or obscured signs and traffic signal issues"},
		{ID: "robbery", Label: "Robbery", Description: "Crime scene, break-in evidence, or suspicious activity"},
		{ID: "other", Label: "Other", Description: "Other infrastructure or community issues"},
	}
}

// LoadFile читает список категорий из YAML-файла
func LoadFile(path string) ([]Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse categories file: %w", err)
	}
	out := make([]Category, 0, len(f.Categories))
	for _, c := range f.Categories {
		tag, err := Normalize(c.ID)
		if err != nil {
			return nil, err
		}
		c.ID = tag
		out = append(out, c)
	}
	return out, nil
}

type registry struct {
	base   []Category
	index  map[string]struct{}
	custom CustomStore
}

// NewRegistry создаёт реестр из базового набора и хранилища пользовательских категорий
func NewRegistry(base []Category, custom CustomStore) Registry {
	index := make(map[string]struct{}, len(base))
	for _, c := range base {
		index[c.ID] = struct{}{}
	}
	return &registry{base: base, index: index, custom: custom}
}

func (r *registry) Known(ctx context.Context) ([]Category, error) {
	out := append([]Category(nil), r.base...)
	members, err := r.custom.Members(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list custom categories: %w", err)
	}
	sort.Strings(members)
	for _, tag := range members {
		if _, ok := r.index[tag]; ok {
			continue
		}
		out = append(out, Category{ID: tag, Label: tag, Custom: true})
	}
	return out, nil
}

func (r *registry) Remember(ctx context.Context, tag string) error {
	if _, ok := r.index[tag]; ok {
		return nil
	}
	return r.custom.Add(ctx, tag)
}

// MemoryStore - хранилище пользовательских категорий в памяти процесса
type MemoryStore struct {
	mu   sync.RWMutex
	tags map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tags: make(map[string]struct{})}
}

func (s *MemoryStore) Add(_ context.Context, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[tag] = struct{}{}
	return nil
}

func (s *MemoryStore) Members(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tags))
	for tag := range s.tags {
		out = append(out, tag)
	}
	return out, nil
}
