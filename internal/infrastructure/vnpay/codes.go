package vnpay

// ResponseSuccess is the vnp_ResponseCode for a successful charge.
const ResponseSuccess = "00"

var responseMessages = map[string]string{
	"00": "Giao dịch thành công",
	"07": "Trừ tiền thành công. Giao dịch bị nghi ngờ (liên quan tới lừa đảo, giao dịch bất thường)",
	"09": "Thẻ/Tài khoản của khách hàng chưa đăng ký dịch vụ InternetBanking tại ngân hàng",
	"10": "Khách hàng xác thực thông tin thẻ/tài khoản không đúng quá 3 lần",
	"11": "Đã hết hạn chờ thanh toán",
	"12": "Thẻ/Tài khoản của khách hàng bị khóa",
	"13": "Quý khách nhập sai mật khẩu xác thực giao dịch (OTP)",
	"24": "Khách hàng hủy giao dịch",
	"51": "Tài khoản không đủ số dư để thực hiện giao dịch",
	"65": "Tài khoản đã vượt quá hạn mức giao dịch trong ngày",
	"75": "Ngân hàng thanh toán đang bảo trì",
	"79": "Nhập sai mật khẩu thanh toán quá số lần quy định",
	"99": "Các lỗi khác",
}

// ResponseMessage describes a vnp_ResponseCode for logs and users.
func ResponseMessage(code string) string {
	if msg, ok := responseMessages[code]; ok {
		return msg
	}
	return "Thanh toán thất bại. Mã lỗi: " + code
}

// IPN acknowledgement codes returned to the gateway. The gateway stops
// retrying on everything except 99.
type Ack struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

var (
	AckSuccess          = Ack{RspCode: "00", Message: "Confirm Success"}
	AckOrderNotFound    = Ack{RspCode: "01", Message: "Order not found"}
	AckAlreadyConfirmed = Ack{RspCode: "02", Message: "Order already confirmed"}
	AckInvalidRequest   = Ack{RspCode: "03", Message: "Invalid request"}
	AckInvalidAmount    = Ack{RspCode: "04", Message: "Invalid amount"}
	AckInvalidSignature = Ack{RspCode: "97", Message: "Invalid signature"}
	AckUnknownError     = Ack{RspCode: "99", Message: "Unknown error"}
)
