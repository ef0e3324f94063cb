package public

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/devs-store/unlock-api/internal/constants"
	"github.com/devs-store/unlock-api/internal/logger"
	"github.com/devs-store/unlock-api/internal/service"

	"github.com/gin-gonic/gin"
)

// usedPageTemplate 已用码拦截页（410）。
// 页面直接内联返回，扫码端不依赖任何静态资源。
var usedPageTemplate = template.Must(template.New("qr_used").Parse(`<html>
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>QR già utilizzato</title>
    <style>
      body {
        margin: 0;
        padding: 0;
        font-family: system-ui, -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
        background: #050505;
        color: #f5f5f5;
        display: flex;
        align-items: center;
        justify-content: center;
        min-height: 100vh;
      }
      .box {
        text-align: center;
        padding: 24px 20px;
        border-radius: 16px;
        border: 1px solid #333;
        max-width: 360px;
      }
      h1 {
        font-size: 20px;
        margin-bottom: 8px;
      }
      p {
        font-size: 14px;
        line-height: 1.5;
        opacity: 0.85;
      }
      a {
        color: #fff;
        text-decoration: underline;
      }
    </style>
  </head>
  <body>
    <div class="box">
      <h1>QR già utilizzato</h1>
      <p>
        Questo codice QR è già stato usato in precedenza e non è più valido.
      </p>
      <p>
        Se pensi ci sia un errore, accedi alla tua
        <a href="{{.AccountURL}}">area personale</a>
        o contatta il supporto Devs Store.
      </p>
    </div>
  </body>
</html>`))

// RedeemQR 扫码兑换入口。
// 响应契约：400 纯文本 / 404 纯文本 / 410 HTML 拦截页 / 302 跳转。
func (h *Handler) RedeemQR(c *gin.Context) {
	input := service.RedeemInput{
		Code:          strings.TrimSpace(c.Query("code")),
		CustomerID:    strings.TrimSpace(c.Query("customerId")),
		CustomerEmail: strings.TrimSpace(c.Query("customerEmail")),
		IPAddress:     c.ClientIP(),
		UserAgent:     c.GetHeader("User-Agent"),
	}

	result, err := h.RedeemService.Redeem(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeRequired):
			c.String(http.StatusBadRequest, "Missing QR code")
		case errors.Is(err, service.ErrCodeNotFound):
			c.String(http.StatusNotFound, "QR non valido o non registrato.")
		default:
			logger.Errorw("qr_redeem_handler_failed", "code", input.Code, "error", err)
			c.String(http.StatusInternalServerError, "Servizio momentaneamente non disponibile.")
		}
		return
	}

	if result.Outcome == constants.RedeemOutcomeAlreadyUsed {
		h.renderUsedPage(c)
		return
	}

	c.Redirect(http.StatusFound, result.Destination)
}

func (h *Handler) renderUsedPage(c *gin.Context) {
	c.Status(http.StatusGone)
	c.Header("Content-Type", "text/html; charset=utf-8")
	data := gin.H{"AccountURL": h.Config.Redeem.AccountURL}
	if err := usedPageTemplate.Execute(c.Writer, data); err != nil {
		logger.Warnw("qr_used_page_render_failed", "error", err)
	}
}
