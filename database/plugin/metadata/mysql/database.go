// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mysql

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/slimy-crypto/slimy/database/plugin/metadata/internal/gormstore"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// MetadataStoreMysql is a MySQL-based implementation of the metadata store
type MetadataStoreMysql struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	host         string
	user         string
	password     string
	database     string
	sslMode      string
	timeZone     string
	dsn          string
	port         uint
}

// NewWithOptions creates a MySQL metadata store from option funcs
func NewWithOptions(opts ...MysqlOptionFunc) (*MetadataStoreMysql, error) {
	d := &MetadataStoreMysql{}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if strings.TrimSpace(d.dsn) == "" && d.password == "" {
		return nil, errors.New("mysql: a password or a full DSN is required")
	}
	return d, nil
}

func (d *MetadataStoreMysql) buildDsn() string {
	if dsn := strings.TrimSpace(d.dsn); dsn != "" {
		return dsn
	}
	cfg := mysql.Config{
		User:   d.user,
		Passwd: d.password,
		Net:    "tcp",
		Addr: fmt.Sprintf(
			"%s:%s",
			d.host,
			strconv.FormatUint(uint64(d.port), 10),
		),
		DBName:               d.database,
		ParseTime:            true,
		AllowNativePasswords: true,
		Params:               map[string]string{},
	}
	if d.timeZone != "" {
		loc, err := time.LoadLocation(d.timeZone)
		if err != nil {
			loc = time.UTC
		}
		cfg.Loc = loc
	}
	if d.sslMode != "" {
		cfg.Params["tls"] = d.sslMode
	}
	return cfg.FormatDSN()
}

// databaseName returns the database named by the connection settings
func (d *MetadataStoreMysql) databaseName() string {
	dsn := strings.TrimSpace(d.dsn)
	if dsn == "" {
		return d.database
	}
	base, _, _ := strings.Cut(dsn, "?")
	slash := strings.LastIndex(base, "/")
	if slash < 0 || slash == len(base)-1 {
		return ""
	}
	return base[slash+1:]
}

// Start implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Start() error {
	metadataDb, err := gorm.Open(
		gormmysql.Open(d.buildDsn()),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		},
	)
	if err != nil {
		return err
	}
	d.logger.Info(
		"connected to mysql metadata store",
		"component", "database",
		"host", d.host,
		"port", d.port,
		"database", d.databaseName(),
	)
	sqlDB, err := metadataDb.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	if err := metadataDb.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	d.Store = gormstore.New(metadataDb, d.logger)
	if d.promRegistry != nil {
		if err := d.promRegistry.Register(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "database_metadata_open_connections",
					Help: "Number of open connections to the metadata database",
				},
				func() float64 {
					return float64(sqlDB.Stats().OpenConnections)
				},
			),
		); err != nil {
			return err
		}
	}
	return d.Migrate()
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Stop() error {
	return d.Close()
}

// Close closes the database connection
func (d *MetadataStoreMysql) Close() error {
	if d.Store == nil {
		return nil
	}
	db, err := d.DB().DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return db.Close()
}
