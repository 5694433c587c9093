package probe

type payloadCase struct {
	name     string
	payload  map[string]any
	expected string
}

func appPayResponse(outTradeNo string) map[string]any {
	return map[string]any{
		"code":         "10000",
		"msg":          "Success",
		"app_id":       "9021000140690016",
		"out_trade_no": outTradeNo,
		"trade_no":     "2024122022001234567890001",
		"total_amount": "0.01",
		"seller_id":    "2088721034567890",
		"charset":      "utf-8",
		"timestamp":    "2024-12-20 18:00:00",
	}
}

func verifyErrorCases() []payloadCase {
	return []payloadCase{
		{
			name: "user canceled",
			payload: map[string]any{
				"resultStatus": "6001",
				"result":       "",
				"memo":         "用户中途取消",
			},
			expected: "NO_RESPONSE_DATA",
		},
		{
			name: "missing fields",
			payload: map[string]any{
				"resultStatus": "9000",
				"result": map[string]any{
					"alipay_trade_app_pay_response": map[string]any{
						"code": "10000",
						"msg":  "Success",
					},
					"sign":      "mock_signature",
					"sign_type": "RSA2",
				},
			},
			expected: "MISSING_FIELD",
		},
		{
			name: "failed response code",
			payload: map[string]any{
				"resultStatus": "9000",
				"result": map[string]any{
					"alipay_trade_app_pay_response": map[string]any{
						"code":         "40004",
						"msg":          "Business Failed",
						"out_trade_no": "TEST_FAIL_001",
						"trade_no":     "2024122022001234567890999",
						"total_amount": "0.01",
					},
					"sign":      "mock_signature",
					"sign_type": "RSA2",
				},
			},
			expected: "INVALID_RESPONSE_CODE",
		},
		{
			name: "trade not exist",
			payload: map[string]any{
				"resultStatus": "4000",
				"result": map[string]any{
					"alipay_trade_app_pay_response": map[string]any{
						"code":     "40004",
						"msg":      "Business Failed",
						"sub_code": "ACQ.TRADE_NOT_EXIST",
						"sub_msg":  "交易不存在",
					},
				},
				"memo": "支付失败",
			},
			expected: "INVALID_RESPONSE_CODE",
		},
	}
}

func verifyShapeCases() []payloadCase {
	return []payloadCase{
		{
			name: "nested object",
			payload: map[string]any{
				"resultStatus": "9000",
				"result": map[string]any{
					"alipay_trade_app_pay_response": appPayResponse("TEST_FORMAT_001"),
					"sign":                          "mock_signature",
					"sign_type":                     "RSA2",
				},
				"memo": "处理成功",
			},
		},
		{
			name: "json string",
			payload: map[string]any{
				"resultStatus": "9000",
				"result":       `{"alipay_trade_app_pay_response":{"code":"10000","msg":"Success","app_id":"9021000140690016","out_trade_no":"TEST_FORMAT_002","trade_no":"2024122022001234567890002","total_amount":"0.01"},"sign":"mock_signature","sign_type":"RSA2"}`,
				"memo":         "处理成功",
			},
		},
		{
			name: "flattened",
			payload: map[string]any{
				"alipay_trade_app_pay_response": appPayResponse("TEST_FORMAT_003"),
				"sign":                          "mock_signature",
				"sign_type":                     "RSA2",
			},
		},
	}
}
