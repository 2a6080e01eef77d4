package model

/*
 * Copyright © 2018-2019 Around25 SRL <office@around25.com>
 *
 * Licensed under the Around25 Wallet License Agreement (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.around25.com/licenses/EXCHANGE_LICENSE
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 * @author		Cosmin Harangus <cosmin@around25.com>
 * @copyright 2018-2019 Around25 SRL <office@around25.com>
 * @license 	EXCHANGE_LICENSE
 */

import (
	"time"

	"github.com/segmentio/encoding/json"
)

// TransferNotification is published to the recipient of a completed transfer
type TransferNotification struct {
	TransferID  string    `json:"transferId"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Asset       string    `json:"asset"`
	Amount      string    `json:"amount"`
	UsdEstimate *string   `json:"usdEstimate,omitempty"`
	Memo        string    `json:"memo"`
	Timestamp   time.Time `json:"timestamp"`
}

// ToBinary godoc
func (n *TransferNotification) ToBinary() ([]byte, error) {
	return json.Marshal(n)
}

// FromBinary godoc
func (n *TransferNotification) FromBinary(data []byte) error {
	return json.Unmarshal(data, n)
}
