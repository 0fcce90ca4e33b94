package controllers

import (
	"context"
	"embed"
	"io"
	"log"
	"net/http"
	"os"
	"text/template"

	"artstudioapi/models"
	"artstudioapi/services"

	"github.com/go-playground/validator"
	"github.com/hibiken/asynq"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

type Template struct {
	templates *template.Template
}

func (t *Template) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

//go:embed templates
var embededFiles embed.FS

func SetupServer(
	db *gorm.DB,
	gatekeeper services.GatekeeperProvider,
	llm services.LLMProvider,
	usageLog services.UsageLogProvider,
	awsService services.AWSServiceProvider,
	urlCache services.URLCacheServiceProvider,
	asynqClient *asynq.Client,
) *echo.Echo {

	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("Failed to initialize AWS provider: S3")
	}

	e := echo.New()
	templates, err := template.ParseFS(embededFiles, "templates/*.html")
	if err != nil {
		log.Fatal("Failed to parse templates: ", err)
	}
	e.Renderer = &Template{templates: templates}

	v := validator.New()
	v.RegisterValidation("language", models.ValidateLanguage)
	v.RegisterValidation("gender", models.ValidateGender)
	v.RegisterValidation("framing", models.ValidateFraming)
	v.RegisterValidation("background", models.ValidateBackground)
	v.RegisterValidation("videomode", models.ValidateVideoMode)
	e.Validator = &CustomValidator{validator: v}

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			c.Set("__asynqclient", asynqClient)
			return next(c)
		}
	})

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.GET("/", func(c echo.Context) error {
		return c.Render(http.StatusOK, "studio.html", nil)
	})

	sessions := NewSessionStore()
	studioController := &StudioController{
		Gatekeeper: gatekeeper,
		LLM:        llm,
		UsageLog:   usageLog,
		AWSService: awsService,
		URLCache:   urlCache,
		Sessions:   sessions,
		BucketName: services.GetEnv("R2_BUCKET_NAME", ""),
	}

	studioGroup := e.Group("/studio", echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))), SessionMiddleware(sessions))
	studioController.Routes(e, studioGroup)

	return e
}
