/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、配置加载等初始化工作
 * @architecture 分层架构 - 服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 应用启动时执行初始化流程
 * @rules 确保所有依赖服务正常启动后才提供API服务
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs dev_docs/model.md
 */

package service

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"dataquality-service/service/audit"
	"dataquality-service/service/database"
	"dataquality-service/service/datasource"
	"dataquality-service/service/distributed_lock"
)

var (
	DB                     *gorm.DB
	GlobalRuleRegistry     *audit.RuleRegistry
	GlobalAuditService     *audit.AuditService
	GlobalExceptionService *audit.ExceptionService
	GlobalAuditScheduler   *audit.AuditScheduler
)

func init() {
	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var dsn string

	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dsn = databaseURL
	} else {
		// 使用分离的环境变量构建连接字符串
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "things2024")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
		schema := getEnvWithDefault("DB_SCHEMA", "public")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
			host, port, user, password, dbname, sslmode, schema)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("数据库连接成功")
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() {
	log.Println("开始运行数据库迁移...")

	if err := database.AutoMigrate(DB); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	log.Println("所有数据库迁移任务完成")
}

// initServices 初始化服务
func initServices() {
	GlobalRuleRegistry = audit.NewRuleRegistry(DB)

	// 被审计数据源: 配置了AUDIT_SOURCE_DSN时走独立连接池，否则审计元数据库所在的库
	var executor audit.QueryExecutor
	if sourceDSN := os.Getenv("AUDIT_SOURCE_DSN"); sourceDSN != "" {
		pgExecutor, err := datasource.NewPostgresExecutor(sourceDSN)
		if err != nil {
			log.Fatalf("被审计数据源连接失败: %v", err)
		}
		executor = pgExecutor
	} else {
		executor = audit.NewGormExecutor(DB)
	}

	// 规则事件发布: 配置了Kafka地址时发布到消息流，否则静默丢弃
	var publisher audit.RuleEventPublisher = audit.NoopEventPublisher{}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		publisher = audit.NewKafkaEventPublisher(strings.Split(brokers, ","),
			getEnvWithDefault("KAFKA_TOPIC", "dq-check-results"))
	}

	workers := 0
	if w := os.Getenv("AUDIT_WORKERS"); w != "" {
		fmt.Sscanf(w, "%d", &workers)
	}
	dispatcher := audit.NewDispatcher(DB, executor, publisher, workers)
	scoring := audit.NewScoringService(DB, os.Getenv("SCORE_ERROR_AS_FAIL") == "true")
	GlobalAuditService = audit.NewAuditService(DB, GlobalRuleRegistry, dispatcher, scoring)
	GlobalExceptionService = audit.NewExceptionService(DB)
	GlobalAuditScheduler = audit.NewAuditScheduler(DB, GlobalAuditService)

	// 多实例部署时启用Redis分布式锁
	if os.Getenv("REDIS_HOST") != "" {
		redisLock, err := distributed_lock.NewRedisLock()
		if err != nil {
			log.Printf("Redis分布式锁初始化失败，降级为单实例模式: %v", err)
		} else {
			GlobalAuditService.SetDistributedLock(redisLock)
			GlobalAuditScheduler.SetDistributedLock(redisLock)
		}
	}

	// 启动审计调度器
	if err := GlobalAuditScheduler.StartScheduler(); err != nil {
		log.Printf("启动审计调度器失败: %v", err)
	}
	log.Println("服务初始化完成")
}
