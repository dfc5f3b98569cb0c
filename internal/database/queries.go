/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

const (
	// Counter queries
	queryEnsureCounter = `
		INSERT OR IGNORE INTO counters (name, value) VALUES (?, 1)`

	queryGetCounter = `
		SELECT value FROM counters WHERE name = ?`

	queryIncrementCounter = `
		UPDATE counters SET value = value + 1 WHERE name = ?`

	// Auction queries
	queryInsertAuction = `
		INSERT INTO auctions (
			id, item_name, image, max_bid_amount, total_supply, start_price, floor_price,
			decay_interval_micros, decay_amount, start_time, end_time, creator,
			payment_symbol, payment_app_id, payout_symbol, payout_app_id,
			current_price, last_price_update, sold, clearing_price, status,
			settled_at, bids_pruned, total_bids, total_bidders
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetAuction = `
		SELECT id, item_name, image, max_bid_amount, total_supply, start_price, floor_price,
		       decay_interval_micros, decay_amount, start_time, end_time, creator,
		       payment_symbol, payment_app_id, payout_symbol, payout_app_id,
		       current_price, last_price_update, sold, clearing_price, status,
		       settled_at, bids_pruned, total_bids, total_bidders
		FROM auctions
		WHERE id = ?`

	queryListAuctions = `
		SELECT id, item_name, image, max_bid_amount, total_supply, start_price, floor_price,
		       decay_interval_micros, decay_amount, start_time, end_time, creator,
		       payment_symbol, payment_app_id, payout_symbol, payout_app_id,
		       current_price, last_price_update, sold, clearing_price, status,
		       settled_at, bids_pruned, total_bids, total_bidders
		FROM auctions
		ORDER BY id DESC
		LIMIT ? OFFSET ?`

	queryAuctionsByCreator = `
		SELECT id, item_name, image, max_bid_amount, total_supply, start_price, floor_price,
		       decay_interval_micros, decay_amount, start_time, end_time, creator,
		       payment_symbol, payment_app_id, payout_symbol, payout_app_id,
		       current_price, last_price_update, sold, clearing_price, status,
		       settled_at, bids_pruned, total_bids, total_bidders
		FROM auctions
		WHERE creator = ?
		ORDER BY id DESC`

	queryUpdateAuction = `
		UPDATE auctions
		SET current_price = ?, last_price_update = ?, sold = ?, clearing_price = ?,
		    status = ?, settled_at = ?, bids_pruned = ?, total_bids = ?, total_bidders = ?
		WHERE id = ?`

	// Bid queries
	queryInsertBid = `
		INSERT INTO bids (bid_id, auction_id, bidder, quantity, amount_paid, bid_time, claimed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetUserBids = `
		SELECT bid_id, auction_id, bidder, quantity, amount_paid, bid_time, claimed
		FROM bids
		WHERE bidder = ? AND auction_id = ?
		ORDER BY bid_id`

	queryGetAuctionBids = `
		SELECT bid_id, auction_id, bidder, quantity, amount_paid, bid_time, claimed
		FROM bids
		WHERE auction_id = ?
		ORDER BY bid_id
		LIMIT ? OFFSET ?`

	queryMarkBidClaimed = `
		UPDATE bids SET claimed = 1 WHERE bid_id = ? AND bidder = ? AND auction_id = ?`

	queryPruneClaimedBids = `
		DELETE FROM bids WHERE auction_id = ? AND claimed = 1`

	queryPruneAllBids = `
		DELETE FROM bids WHERE auction_id = ?`

	// User total queries
	queryUpsertUserTotal = `
		INSERT INTO user_totals (auction_id, bidder, quantity) VALUES (?, ?, ?)
		ON CONFLICT(auction_id, bidder) DO UPDATE SET quantity = excluded.quantity`

	queryGetUserTotal = `
		SELECT quantity FROM user_totals WHERE auction_id = ? AND bidder = ?`
)
