package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"courtmaster/internal/config"
	"courtmaster/internal/database"
	"courtmaster/internal/domain"
	"courtmaster/internal/infrastructure/vnpay"
	"courtmaster/internal/logger"
	"courtmaster/internal/repo"
	"courtmaster/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// simulateCmd replays gateway callbacks against a real database: every payment
// receives several concurrent IPN deliveries, some of them tampered, and the
// final state is printed so double completion would be visible.
func simulateCmd() *cobra.Command {
	var (
		payments   int
		deliveries int
		tamperRate float64
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Fire duplicate and tampered IPN deliveries at fresh payments and report the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, payments, deliveries, tamperRate)
		},
	}
	cmd.Flags().IntVar(&payments, "payments", 10, "number of payments to create")
	cmd.Flags().IntVar(&deliveries, "deliveries", 5, "concurrent IPN deliveries per payment")
	cmd.Flags().Float64Var(&tamperRate, "tamper-rate", 0.2, "probability that a delivery carries a tampered amount")
	return cmd
}

func runSimulation(cmd *cobra.Command, payments, deliveries int, tamperRate float64) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.IsProduction() {
		return fmt.Errorf("simulate refuses to run with APP_ENV=production")
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	paymentRepo := repo.NewPaymentRepo(db)
	logRepo := repo.NewPaymentLogRepo(db)
	bookingRepo := repo.NewBookingRepo(db)
	courtRepo := repo.NewCourtRepo(db)
	tx := repo.NewTransactor(db)
	gateway := vnpay.NewPaymentGateway(cfg.VNPay)
	signer := vnpay.NewSigner(cfg.VNPay.SecretKey)

	bookingSvc := service.NewBookingService(tx, bookingRepo, courtRepo, paymentRepo, logRepo, log)
	paymentSvc := service.NewPaymentService(tx, paymentRepo, logRepo, bookingRepo, gateway, log)
	reconciler := service.NewReconciler(tx, paymentRepo, logRepo, bookingRepo, gateway, nil, log)

	user, err := repo.NewUserRepo(db).UpsertByEmail(ctx, &domain.User{
		ID: uuid.New(), Email: "simulator@courtmaster.local", FullName: "Simulator", Role: domain.RoleCustomer, CreatedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	actor := domain.Actor{UserID: user.ID, Role: user.Role}

	// Sân riêng cho mỗi lần chạy để không đụng slot của lần trước
	court := &domain.Court{
		ID: uuid.New(), Name: "Sân mô phỏng " + time.Now().Format("150405"),
		PricePerHour: decimal.NewFromInt(100000), Active: true, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := courtRepo.Create(ctx, court); err != nil {
		return err
	}

	fmt.Fprintf(out, "--- SIMULATING %d PAYMENTS x %d DELIVERIES ---\n", payments, deliveries)
	slots := domain.DefaultTimeSlots()
	for i := 0; i < payments; i++ {
		// 1. Đặt sân + tạo thanh toán
		booking, err := bookingSvc.Create(ctx, actor, service.CreateBookingInput{
			CourtID: court.ID,
			Date:    time.Now().AddDate(0, 0, 1+i/len(slots)),
			SlotIDs: []int{slots[i%len(slots)].ID},
		})
		if err != nil {
			fmt.Fprintf(out, "[%d] booking failed: %v\n", i+1, err)
			continue
		}
		p, err := paymentSvc.CreateForBooking(ctx, actor, booking.ID, service.ClientInfo{IP: "127.0.0.1"})
		if err != nil {
			fmt.Fprintf(out, "[%d] payment failed: %v\n", i+1, err)
			continue
		}
		if _, err := paymentSvc.CreateRedirect(ctx, actor, p.ID, service.ClientInfo{IP: "127.0.0.1"}); err != nil {
			fmt.Fprintf(out, "[%d] redirect failed: %v\n", i+1, err)
			continue
		}
		p, err = paymentRepo.FindByID(ctx, nil, p.ID)
		if err != nil {
			return err
		}

		// 2. Bắn nhiều IPN cùng lúc, một số bị sửa số tiền
		acks := deliver(ctx, reconciler, signer, p, deliveries, tamperRate)

		// 3. Đọc lại DB để xem trạng thái thực tế
		fresh, err := paymentRepo.FindByID(ctx, nil, p.ID)
		if err != nil {
			return err
		}
		freshBooking, err := bookingRepo.FindByID(ctx, nil, booking.ID)
		if err != nil {
			return err
		}
		entries, err := logRepo.ListByPayment(ctx, p.ID, 100)
		if err != nil {
			return err
		}
		successes := 0
		for _, e := range entries {
			if e.Action == domain.LogPaymentSuccess {
				successes++
			}
		}

		verdict := "OK"
		if successes > 1 {
			verdict = "DOUBLE COMPLETION"
		}
		fmt.Fprintf(out, "[%d] %s acks=%v -> payment=%s booking=%s success_logs=%d %s\n",
			i+1, p.TxnRef, acks, fresh.Status, freshBooking.Status, successes, verdict)
	}
	return nil
}

func deliver(ctx context.Context, rec service.Reconciler, signer *vnpay.Signer, p *domain.Payment, n int, tamperRate float64) map[string]int {
	base := map[string]string{
		"vnp_Amount":        strconv.FormatInt(p.MinorAmount(), 10),
		"vnp_BankCode":      "NCB",
		"vnp_CardType":      "ATM",
		"vnp_OrderInfo":     p.OrderInfo,
		"vnp_PayDate":       vnpay.InGatewayZone(time.Now()).Format(vnpay.DateLayout),
		"vnp_ResponseCode":  vnpay.ResponseSuccess,
		"vnp_TransactionNo": strconv.Itoa(rand.IntN(90000000) + 10000000),
		"vnp_TxnRef":        p.TxnRef,
	}
	base[vnpay.ParamSecureHash] = signer.Sign(base)

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		acks = map[string]int{}
	)
	for i := 0; i < n; i++ {
		params := make(map[string]string, len(base))
		for k, v := range base {
			params[k] = v
		}
		if rand.Float64() < tamperRate {
			params["vnp_Amount"] = "100"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ack := rec.HandleIPN(ctx, params)
			mu.Lock()
			acks[ack.RspCode]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	return acks
}
