package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/payops-agent-gateway/internal/compliance"
	"github.com/xela07ax/payops-agent-gateway/internal/domain"
	"github.com/xela07ax/payops-agent-gateway/internal/memory"
	"github.com/xela07ax/payops-agent-gateway/internal/policy"
	"github.com/xela07ax/payops-agent-gateway/internal/risk"
)

// Шаблоны идентификаторов датасета в свободном тексте оператора
var (
	reMerchantID = regexp.MustCompile(`(?i)\bMER-[A-Za-z0-9_-]+\b`)
	reTxnID      = regexp.MustCompile(`(?i)\bTXN-[A-Za-z0-9_-]+\b`)
)

// Ключевые слова, переключающие запрос по мерчанту в режим комплаенса
var complianceWords = []string{"compliance", "monitoring", "chargeback ratio", "program"}

// Investigator — детерминированный оркестратор расследования. Раньше эту
// роль играла LLM с промптом «вызывай тулы в таком порядке»; здесь порядок
// зашит кодом, а стейт-машина Registry его дополнительно охраняет.
// Каждый Handle — одна реплика оператора: роутинг намерения по id и
// ключевым словам, прогон нужных операций, сборка текстового ответа.
type Investigator struct {
	reg       *Registry
	mem       memory.Store
	watchlist *Watchlist // nil = режим без Redis, аннотаций не будет
	logger    *zap.Logger
	now       func() time.Time
}

func NewInvestigator(reg *Registry, mem memory.Store, wl *Watchlist, logger *zap.Logger, now func() time.Time) *Investigator {
	if now == nil {
		now = time.Now
	}
	return &Investigator{
		reg:       reg,
		mem:       mem,
		watchlist: wl,
		logger:    logger.Named("investigator"),
		now:       now,
	}
}

// Handle обрабатывает одну реплику треда и возвращает текст ответа.
// Память диалога пополняется в обе стороны; ошибки памяти не фатальны
// для ответа — логируем и продолжаем.
func (iv *Investigator) Handle(ctx context.Context, threadID, userInput string) (string, error) {
	if err := iv.mem.AppendTurn(ctx, threadID, memory.Turn{Role: "user", Text: userInput, At: iv.now()}); err != nil {
		iv.logger.Warn("failed to persist user turn", zap.String("thread_id", threadID), zap.Error(err))
	}

	response, err := iv.route(ctx, threadID, userInput)
	if err != nil {
		return "", err
	}

	if err := iv.mem.AppendTurn(ctx, threadID, memory.Turn{Role: "assistant", Text: response, At: iv.now()}); err != nil {
		iv.logger.Warn("failed to persist assistant turn", zap.String("thread_id", threadID), zap.Error(err))
	}
	return response, nil
}

func (iv *Investigator) route(ctx context.Context, threadID, input string) (string, error) {
	lower := strings.ToLower(input)

	// Вопрос по конкретной транзакции — одиночный анализ без открытия расследования
	if txnID := reTxnID.FindString(input); txnID != "" {
		return iv.transactionLookup(ctx, threadID, txnID)
	}

	merchantID := reMerchantID.FindString(input)
	if merchantID == "" {
		// Ни одного id — трактуем вход как вопрос к базе знаний
		return iv.policyLookup(ctx, threadID, input)
	}

	for _, w := range complianceWords {
		if strings.Contains(lower, w) {
			return iv.complianceReview(ctx, threadID, merchantID)
		}
	}

	return iv.investigate(ctx, threadID, merchantID)
}

// invoke — типизированный хелпер над Registry.Invoke: маршалит аргументы
// и возвращает сырой результат для ассершена вызывающей стороной
func (iv *Investigator) invoke(ctx context.Context, threadID string, op OpKind, args interface{}) (interface{}, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args for %s: %w", op, err)
	}
	return iv.reg.Invoke(ctx, threadID, op, raw)
}

// transactionLookup — одиночный вопрос «что с TXN-x»: оценка риска и,
// при отказе с кодом, выдержка из KB по этому коду
func (iv *Investigator) transactionLookup(ctx context.Context, threadID, txnID string) (string, error) {
	res, err := iv.invoke(ctx, threadID, OpEvaluateRisk, EvaluateRiskArgs{TransactionID: txnID})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "I could not find transaction " + txnID + " in the dataset.", nil
		}
		return "", err
	}
	a := res.(*risk.Assessment)

	var b strings.Builder
	b.WriteString("What I checked: transaction " + a.Transaction.TransactionID + "\n\n")
	b.WriteString("Findings:\n")
	fmt.Fprintf(&b, "- Risk band: %s (score %.2f)\n", a.Band, a.Transaction.RiskScore)
	for _, s := range a.Signals {
		b.WriteString("- " + s + "\n")
	}
	if len(a.Signals) == 0 {
		b.WriteString("- No risk signals detected\n")
	}

	if a.Transaction.Status == domain.TxDeclined && a.Transaction.DeclineCode != "" {
		kb, err := iv.invoke(ctx, threadID, OpRetrievePolicy, RetrieveArgs{
			Query:   "decline code " + a.Transaction.DeclineCode,
			Context: map[string]string{"transaction_id": a.Transaction.TransactionID},
		})
		if err == nil {
			appendPolicySection(&b, kb.(*policy.SearchResult))
		}
	}

	b.WriteString("\nRecommended next actions:\n")
	for _, act := range a.NextActions {
		b.WriteString("- " + act + "\n")
	}

	iv.annotateWatchlist(&b, a.Transaction.MerchantID)
	return b.String(), nil
}

// complianceReview — вердикт мониторинга по мерчанту + плейбук из KB
func (iv *Investigator) complianceReview(ctx context.Context, threadID, merchantID string) (string, error) {
	res, err := iv.invoke(ctx, threadID, OpEvaluateCompliance, EvaluateComplianceArgs{MerchantID: merchantID})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "I could not find merchant " + merchantID + " in the dataset.", nil
		}
		return "", err
	}
	rep := res.(*compliance.Report)

	var b strings.Builder
	b.WriteString("What I checked: monitoring status for merchant " + rep.MerchantID + "\n\n")
	b.WriteString("Findings:\n")
	fmt.Fprintf(&b, "- Chargeback ratio: %.4f\n", rep.ChargebackRatio)
	fmt.Fprintf(&b, "- Monitoring verdict: %s\n", rep.Verdict)
	fmt.Fprintf(&b, "- Thresholds: early_warning %.4f, approaching %.4f, monitoring %.4f\n",
		rep.Thresholds.EarlyWarningThreshold, rep.Thresholds.ApproachingThreshold, rep.Thresholds.MonitoringThreshold)

	kb, err := iv.invoke(ctx, threadID, OpRetrievePolicy, RetrieveArgs{
		Query:   rep.SnippetCategory,
		Context: map[string]string{"merchant_id": rep.MerchantID},
	})
	if err == nil {
		appendPolicySection(&b, kb.(*policy.SearchResult))
	}

	b.WriteString("\nRecommended next actions:\n")
	if rep.Verdict.AtLeast(domain.VerdictEarlyWarning) {
		b.WriteString("- Review remediation playbook and open a remediation plan with the merchant.\n")
	} else {
		b.WriteString("- No remediation required; ratio is within the healthy range.\n")
	}

	iv.annotateWatchlist(&b, rep.MerchantID)
	return b.String(), nil
}

// policyLookup — свободный вопрос к базе знаний без привязки к записям
func (iv *Investigator) policyLookup(ctx context.Context, threadID, query string) (string, error) {
	res, err := iv.invoke(ctx, threadID, OpRetrievePolicy, RetrieveArgs{Query: query})
	if err != nil {
		return "", err
	}
	sr := res.(*policy.SearchResult)

	if len(sr.Results) == 0 {
		return "I could not find anything in the internal knowledge base for that question. " +
			"Try mentioning a merchant (MER-...) or transaction (TXN-...) id, a decline code, or a policy topic.", nil
	}

	var b strings.Builder
	b.WriteString("What I checked: internal knowledge base\n")
	appendPolicySection(&b, sr)
	return b.String(), nil
}

// investigate — полный прогон расследования по мерчанту:
// окно -> выбор якоря -> риск -> комплаенс -> KB -> решение об эскалации
func (iv *Investigator) investigate(ctx context.Context, threadID, merchantID string) (string, error) {
	listRes, err := iv.invoke(ctx, threadID, OpListRecent, ListRecentArgs{MerchantID: merchantID})
	if err != nil {
		return "", err
	}
	listing := listRes.(*ListResult)

	selRes, err := iv.invoke(ctx, threadID, OpSelectRepresentative, SelectArgs{MerchantID: merchantID})
	if err != nil {
		return "", err
	}
	sel := selRes.(*risk.Selection)

	if sel.Reason == risk.ReasonNoTransactions {
		// Нечего расследовать — закрываем тред, чтобы следующий вопрос начинался с чистого листа
		iv.reg.Tracker().Reset(threadID)
		var b strings.Builder
		fmt.Fprintf(&b, "What I checked: merchant %s, window %s .. %s\n\n", merchantID, sel.StartTime, sel.EndTime)
		b.WriteString("Findings:\n- No transactions in the recent window, nothing to investigate.\n")
		iv.annotateWatchlist(&b, merchantID)
		return b.String(), nil
	}

	riskRes, err := iv.invoke(ctx, threadID, OpEvaluateRisk, EvaluateRiskArgs{TransactionID: sel.TransactionID})
	if err != nil {
		return "", err
	}
	assessment := riskRes.(*risk.Assessment)

	// Комплаенс — вне стейт-машины, обогащает факты эскалации вердиктом
	var report *compliance.Report
	if compRes, err := iv.invoke(ctx, threadID, OpEvaluateCompliance, EvaluateComplianceArgs{MerchantID: merchantID}); err == nil {
		report = compRes.(*compliance.Report)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	kbQuery := "decline handling"
	if assessment.Transaction.DeclineCode != "" {
		kbQuery = "decline code " + assessment.Transaction.DeclineCode
	}
	kbRes, err := iv.invoke(ctx, threadID, OpRetrievePolicy, RetrieveArgs{
		Query: kbQuery,
		Context: map[string]string{
			"merchant_id":    merchantID,
			"transaction_id": sel.TransactionID,
		},
	})
	if err != nil {
		return "", err
	}
	kb := kbRes.(*policy.SearchResult)

	facts := &domain.EscalationFacts{
		MerchantID:    merchantID,
		TransactionID: assessment.Transaction.TransactionID,
		Band:          assessment.Band,
		RiskScore:     assessment.Transaction.RiskScore,
		ThreeDSResult: assessment.Transaction.ThreeDSResult,
		AVSResult:     assessment.Transaction.AVSResult,
		CVVResult:     assessment.Transaction.CVVResult,
		DeclineCode:   assessment.Transaction.DeclineCode,
		Summary:       assessment.Signals,
	}
	if report != nil {
		facts.Verdict = report.Verdict
	}

	routeRes, routeErr := iv.invoke(ctx, threadID, OpRouteEscalation, RouteArgs{Facts: *facts, ThreadRef: threadID})
	var route *RouteResult
	if routeRes != nil {
		route = routeRes.(*RouteResult)
	}
	if routeErr != nil && !errors.Is(routeErr, domain.ErrDeliveryFailed) {
		return "", routeErr
	}

	return iv.renderInvestigation(merchantID, listing, sel, assessment, report, kb, route, routeErr), nil
}

func (iv *Investigator) renderInvestigation(
	merchantID string,
	listing *ListResult,
	sel *risk.Selection,
	a *risk.Assessment,
	rep *compliance.Report,
	kb *policy.SearchResult,
	route *RouteResult,
	routeErr error,
) string {
	var b strings.Builder

	fmt.Fprintf(&b, "What I checked: merchant %s, window %s .. %s (%d transactions)\n\n",
		merchantID, sel.StartTime, sel.EndTime, listing.Count)

	b.WriteString("Findings:\n")
	fmt.Fprintf(&b, "- Representative transaction: %s (%s)\n", sel.TransactionID, sel.Reason)
	fmt.Fprintf(&b, "- Risk band: %s (score %.2f)\n", a.Band, a.Transaction.RiskScore)
	for _, s := range a.Signals {
		b.WriteString("- " + s + "\n")
	}
	if rep != nil {
		fmt.Fprintf(&b, "- Monitoring verdict: %s (chargeback ratio %.4f)\n", rep.Verdict, rep.ChargebackRatio)
	}

	appendPolicySection(&b, kb)

	b.WriteString("\nRecommended next actions:\n")
	for _, act := range a.NextActions {
		b.WriteString("- " + act + "\n")
	}

	b.WriteString("\nEscalation:\n")
	switch {
	case route == nil || route.Decision == nil || !route.Decision.Required:
		b.WriteString("- Not required based on current signals.\n")
	case routeErr != nil:
		fmt.Fprintf(&b, "- Required (%s), but delivery to %s FAILED after retry. Raise manually.\n",
			strings.Join(route.Decision.Triggers, ", "), route.Decision.Channel)
	default:
		retried := ""
		if route.Delivery != nil && route.Delivery.Retried {
			retried = " (after one retry)"
		}
		fmt.Fprintf(&b, "- Posted to %s%s. Triggers: %s.\n",
			route.Delivery.Channel, retried, strings.Join(route.Decision.Triggers, ", "))
	}

	iv.annotateWatchlist(&b, merchantID)
	return b.String()
}

// annotateWatchlist дописывает пометку, если мерчант стоит на ручном ревью.
// Пометка информационная: на решения ядра watchlist не влияет.
func (iv *Investigator) annotateWatchlist(b *strings.Builder, merchantID string) {
	if iv.watchlist == nil || merchantID == "" {
		return
	}
	if iv.watchlist.IsWatched(merchantID) {
		b.WriteString("\nNote: merchant " + merchantID + " is on the manual review watchlist.\n")
	}
}

func appendPolicySection(b *strings.Builder, sr *policy.SearchResult) {
	if sr == nil || len(sr.Results) == 0 {
		return
	}
	b.WriteString("\nPolicy guidance (" + sr.Source + "):\n")
	for _, snip := range sr.Results {
		b.WriteString("- [" + snip.ID + "] " + snip.Title + "\n")
		for _, line := range snip.Content {
			b.WriteString("    " + line + "\n")
		}
	}
}
