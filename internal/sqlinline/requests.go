package sqlinline

const QWorkerClaimRequest = `--sql 079b10c8-2ff2-4b84-aeb4-f003a03305f3
with next_request as (
    select id
    from generation_requests
    where status = 'pending'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update generation_requests
    set status = 'processing', updated_at = now()
    where id in (select id from next_request)
    returning id
)
select id from updated;
`

const QWorkerRequeueStale = `--sql 53981452-3eec-4a5e-8e0a-07e750d099dc
update generation_requests
set status = 'pending', updated_at = now()
where status in ('processing', 'content_generation', 'validation')
  and updated_at < now() - ($1::int * interval '1 second');
`

const QWorkerPruneVerseCache = `--sql c3256709-0bd4-454a-aca8-7166197eac8b
delete from verse_validation_cache
where expires_at < now();
`
