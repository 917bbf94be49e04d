package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"gopkg.in/yaml.v3"
)

// DefaultPath — путь к конфигурации по умолчанию.
const DefaultPath = "conveyor.yaml"

// Драйверы хранилища событий.
const (
	StoreMemory   = "memory"
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

// Драйверы блокировок.
const (
	LockNone  = "none"
	LockLocal = "local"
	LockRedis = "redis"
)

const (
	defaultHTTPAddr   = ":8080"
	defaultLockTTLSec = 30
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config — конфигурация узла.
type Config struct {
	Node string `yaml:"node" validate:"required"`

	Store StoreConfig `yaml:"store"`
	Lock  LockConfig  `yaml:"lock"`
	AMQP  AMQPConfig  `yaml:"amqp"`
	HTTP  HTTPConfig  `yaml:"http"`

	// PayloadTypes — известные типы данных; пусто — проверка отключена.
	PayloadTypes []string `yaml:"payload_types" validate:"dive,required"`

	Channels    map[string]ChannelConfig            `yaml:"channels" validate:"dive"`
	Definitions map[string]domain.ProcessDefinition `yaml:"definitions"`
	Triggers    []TriggerConfig                     `yaml:"triggers" validate:"dive"`

	// Workers — адресаты, которых обслуживает встроенный HTTP-обработчик.
	Workers []string `yaml:"workers" validate:"dive,required"`
}

// StoreConfig — хранилище событий.
type StoreConfig struct {
	Driver string `yaml:"driver" validate:"oneof=memory bolt postgres"`
	DSN    string `yaml:"dsn,omitempty"`
	Path   string `yaml:"path,omitempty" validate:"required_if=Driver bolt"`
}

// LockConfig — блокировки процессов.
type LockConfig struct {
	Driver    string `yaml:"driver" validate:"oneof=none local redis"`
	RedisAddr string `yaml:"redis_addr,omitempty" validate:"required_if=Driver redis"`
	TTLSec    int    `yaml:"ttl_sec,omitempty" validate:"gte=0"`
}

// TTL возвращает время удержания блокировки.
func (c LockConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// AMQPConfig — подключение к RabbitMQ; пустой URL отключает транспорт.
type AMQPConfig struct {
	URL string `yaml:"url,omitempty" validate:"omitempty,url"`
}

// HTTPConfig — HTTP API узла.
type HTTPConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// ChannelConfig — правило канала.
type ChannelConfig struct {
	Targets           []string `yaml:"targets" validate:"required,min=1,dive,required"`
	Origin            *string  `yaml:"origin,omitempty"`
	Sender            *string  `yaml:"sender,omitempty"`
	Utils             []string `yaml:"utils,omitempty"`
	MessageDispatcher string   `yaml:"message_dispatcher,omitempty"`
}

// TriggerConfig — запуск процесса по расписанию.
type TriggerConfig struct {
	Name        string         `yaml:"name" validate:"required"`
	Cron        string         `yaml:"cron" validate:"required"`
	PayloadType string         `yaml:"payload_type" validate:"required"`
	Origin      string         `yaml:"origin,omitempty"`
	Data        map[string]any `yaml:"data,omitempty"`
	Metadata    map[string]any `yaml:"metadata,omitempty"`
}

// Path возвращает путь к конфигурации из CONVEYOR_CONFIG или DefaultPath.
func Path() string {
	if v := os.Getenv("CONVEYOR_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load читает, дополняет и проверяет конфигурацию.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadConfig, err)
	}
	return Parse(data)
}

// Parse разбирает YAML, применяет переменные окружения и значения по умолчанию.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %w", ErrInvalidConfig, err)
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv переопределяет параметры подключения из окружения.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("DB_URL"); v != "" {
		c.Store.DSN = v
	}
	if v := getenv("RABBITMQ_URL"); v != "" {
		c.AMQP.URL = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Lock.RedisAddr = v
	}
	if v := getenv("NODE_PORT"); v != "" {
		c.HTTP.Addr = ":" + v
	}
}

func (c *Config) applyDefaults() {
	c.Node = strings.TrimSpace(c.Node)
	if c.Store.Driver == "" {
		c.Store.Driver = StoreMemory
	}
	if c.Lock.Driver == "" {
		c.Lock.Driver = LockLocal
	}
	if c.Lock.TTLSec == 0 {
		c.Lock.TTLSec = defaultLockTTLSec
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = defaultHTTPAddr
	}
	for i, t := range c.Triggers {
		if t.Origin == "" {
			c.Triggers[i].Origin = t.Name
		}
	}
}

// Validate проверяет конфигурацию.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := domain.NewNodeName(c.Node); err != nil {
		return fmt.Errorf("%w: node: %w", ErrInvalidConfig, err)
	}
	return nil
}

// NodeName возвращает имя узла.
func (c *Config) NodeName() domain.NodeName {
	return domain.NodeName(c.Node)
}

// PayloadTypeSet возвращает множество типов данных или nil, если оно не задано.
func (c *Config) PayloadTypeSet() domain.PayloadTypes {
	if len(c.PayloadTypes) == 0 {
		return nil
	}
	return domain.NewPayloadTypeSet(c.PayloadTypes...)
}

// ChannelRules возвращает правила каналов, упорядоченные по имени.
func (c *Config) ChannelRules() []engine.ChannelRule {
	names := make([]string, 0, len(c.Channels))
	for name := range c.Channels {
		names = append(names, name)
	}
	slices.Sort(names)

	rules := make([]engine.ChannelRule, 0, len(names))
	for _, name := range names {
		ch := c.Channels[name]
		rules = append(rules, engine.ChannelRule{
			Name:       name,
			Targets:    slices.Clone(ch.Targets),
			Origin:     ch.Origin,
			Sender:     ch.Sender,
			Plugins:    slices.Clone(ch.Utils),
			Dispatcher: ch.MessageDispatcher,
		})
	}
	return rules
}
