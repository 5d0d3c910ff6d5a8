// Package config загружает конфигурацию приложения и config-файлы runner'ов.
//
// Конфигурация приложения — JSON файл в папке конфигурации (по умолчанию
// "config", переопределяется CONVEYOR_CONFIG_DIR):
//
//	{
//	    "jobId": "nightly",
//	    "runFolder": "run",
//	    "logger": {"loglevel": "DEBUG"},
//	    "mainWorkflow":    {"factory": "workflowEngine", "config": "main.json"},
//	    "successWorkflow": {"factory": "workflowEngine", "config": "on-success.json"},
//	    "errorWorkflow":   {"factory": "workflowEngine", "config": "on-error.json"},
//	    "database": {"url": "postgresql://..."},
//	    "rabbitmq": {"url": "amqp://..."},
//	    "server":   {"addr": ":8080"},
//	    "schedule": {"cron": "0 3 * * *", "timezone": "Europe/Moscow"}
//	}
//
// Переменные окружения имеют приоритет над файлом: LOG_LEVEL, LOG_FORMAT,
// DB_URL, RABBITMQ_URL, CONVEYOR_ADDR.
//
// Config-файлы runner'ов читаются из той же папки через Dir.
package config
