// @title EdTech 评测服务 API
// @version 1.0
// @description 试卷评测服务：选择题规则判分，主观题基于文本向量相似度评分，向量服务不可用时降级为关键词评分。

// @contact.name API支持
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api

package main

import (
	"edtech_eval_backend/internal/app"
	"edtech_eval_backend/internal/config"
	"edtech_eval_backend/pkg/logger"
	"flag"
	"log"

	"github.com/joho/godotenv"
)

func main() {
	// 命令行参数
	configDir := flag.String("config", "configs", "配置文件目录（读取其中的 config.yaml）")
	flag.Parse()

	// .env 不存在时只使用系统环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	application.Run()
}
